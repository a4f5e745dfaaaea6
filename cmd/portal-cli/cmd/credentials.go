package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"rdcatalog/lib/credstore"
	"rdcatalog/lib/scrapers/dataportal/core"
)

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manages the per-environment portal credentials.",
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads without echoing so secrets never end up in a
// terminal scrollback.
func promptSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Prompts for and stores the credentials of the selected environment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stored credstore.Credentials
		var err error

		if core.Environment(environment) == core.Test {
			stored.BasicUsername, err = promptLine("basic auth username: ")
			if err != nil {
				return err
			}
			stored.BasicPassword, err = promptSecret("basic auth password: ")
			if err != nil {
				return err
			}
		}
		stored.LoginUsername, err = promptLine("login username: ")
		if err != nil {
			return err
		}
		stored.LoginPassword, err = promptSecret("login password: ")
		if err != nil {
			return err
		}

		if err := creds.Put(cmd.Context(), environment, stored); err != nil {
			return err
		}
		fmt.Printf("stored credentials for %s\n", environment)
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Removes the stored credentials of the selected environment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := creds.Delete(cmd.Context(), environment); err != nil {
			return err
		}
		fmt.Printf("deleted credentials for %s\n", environment)
		return nil
	},
}
