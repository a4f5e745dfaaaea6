package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Tests connectivity and authentication against the selected environment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.Context())
		if err != nil {
			return err
		}

		// the theme page first: on the test environment this
		// exercises the outer basic auth before the session login
		if _, err := client.Get(cmd.Context(), "main.php", url.Values{"mode": {"theme"}}); err != nil {
			return fmt.Errorf("portal unreachable: %w", err)
		}
		if err := client.Login(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("connected to %s (%s)\n", environment, client.BaseUrl)
		return nil
	},
}
