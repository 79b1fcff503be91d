// Command botctl runs operator tasks against the bot's stores: migrations,
// account inspection and manual adjustments.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd(loadEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(load envLoader) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Operator tool for the tiergate bot",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to configs/$APP_ENV.yaml)")

	open := func(cmd *cobra.Command) (*env, error) {
		return load(cmd.Context(), configPath)
	}

	root.AddCommand(migrateCmd(open))
	root.AddCommand(accountCmd(open))
	root.AddCommand(banCmd(open, true))
	root.AddCommand(banCmd(open, false))

	return root
}
