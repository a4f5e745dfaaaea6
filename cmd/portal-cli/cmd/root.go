package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rdcatalog/lib/configutil"
	"rdcatalog/lib/credstore"
	"rdcatalog/lib/restyutil"
	"rdcatalog/lib/scrapers/dataportal/core"
	"rdcatalog/lib/scrapers/dataportal/entry"
	"rdcatalog/lib/telemetry"
)

type EnvironmentConfig struct {
	Url string `json:"url"`
}

type Config struct {
	// Environment URLs are deliberately not hardcoded; the test
	// portal URL in particular lives only in local config.
	Environments map[string]EnvironmentConfig `json:"environments"`
	ExportDir    string                       `json:"export_dir"`
	CredentialDb string                       `json:"credential_db"`
	// SnapshotDir enables raw request/response capture for
	// diagnosing ambiguous portal responses.
	SnapshotDir string `json:"snapshot_dir"`
}

var (
	environment string
	verbose     bool

	config Config
	creds  *credstore.Store
)

var rootCmd = &cobra.Command{
	Use:   "portal-cli",
	Short: "portal-cli drives the research-data cataloging portal over its HTML form interface.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		var err error
		config, err = configutil.ReadRecursively[Config]("portal.json5")
		if err != nil {
			return fmt.Errorf("could not read portal.json5: %w", err)
		}
		if config.ExportDir == "" {
			config.ExportDir = "exports"
		}
		if config.CredentialDb == "" {
			config.CredentialDb = filepath.Join(".", "portal-credentials.db")
		}
		if config.SnapshotDir != "" {
			output, err := restyutil.NewFilesystemOutput(config.SnapshotDir)
			if err != nil {
				return err
			}
			core.SetRestyInstrumentOutput(output)
		}

		creds, err = credstore.Open(config.CredentialDb)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if creds != nil {
			creds.Close()
		}
	},
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&environment, "env", "production", "portal environment (production or test)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newClient builds a portal client for the selected environment from
// the stored credentials.
func newClient(ctx context.Context) (*core.Client, error) {
	envConfig, ok := config.Environments[environment]
	if !ok || envConfig.Url == "" {
		return nil, fmt.Errorf("no url configured for environment %q in portal.json5", environment)
	}

	stored, ok, err := creds.Get(ctx, environment)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no credentials stored for %q, run: portal-cli credentials set --env %s", environment, environment)
	}

	return core.NewClient(ctx, core.ClientOptions{
		Environment:   core.Environment(environment),
		BaseUrl:       envConfig.Url,
		BasicUsername: stored.BasicUsername,
		BasicPassword: stored.BasicPassword,
		LoginUsername: stored.LoginUsername,
		LoginPassword: stored.LoginPassword,
	})
}

func newResolver(ctx context.Context) (*core.Client, *entry.Resolver, error) {
	client, err := newClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, entry.NewResolver(client), nil
}
