// Command activity loads, inspects and runs activities declared in YAML.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "activity",
		Short:         "Build and run declared activities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", DefaultConfigPath(), "CLI config file")

	rootCmd.AddCommand(
		runCmd(),
		inspectCmd(),
		validateCmd(),
		historyCmd(),
	)
	return rootCmd
}

// loadConfig reads the config named by the --config flag.
func loadConfig(cmd *cobra.Command) (*Config, error) {
	flag := cmd.Flag("config")
	path := DefaultConfigPath()
	explicit := false
	if flag != nil {
		path = flag.Value.String()
		explicit = flag.Changed
	}
	return LoadConfig(path, explicit)
}
