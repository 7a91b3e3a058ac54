// Package cmd implements the wagate command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

const defaultConfigPath = "wagate.json5"

var (
	cfgFile    string
	verbose    bool
	apiKeyFlag string
)

var rootCmd = &cobra.Command{
	Use:   "wagate",
	Short: "WhatsApp HTTP and WebSocket gateway",
	Long: `wagate links a WhatsApp account and exposes it over a JSON API,
a WebSocket event channel and an optional webhook.

Running wagate without a subcommand starts the gateway.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default $WAGATE_CONFIG or ./wagate.json5)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&apiKeyFlag, "api-key", "", "API key for a gateway that requires one on /ws (default $WAGATE_API_KEY)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// resolveConfigPath returns the --config flag, then $WAGATE_CONFIG, then the default.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("WAGATE_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway (default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wagate %s\n", Version)
		},
	}
}
