// EconDash serves an economic dashboard backed by an incrementally
// accumulated local cache of FRED series and global market data.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"

	"EconDash/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

var cfg *config.Config

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "econdash",
	Short: "Economic dashboard for FRED series and global stock indices",
	Long: `EconDash keeps a local cache of economic series, fetching only the
dates it does not hold yet, and serves them as a web dashboard with a JSON API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[WARN] load .env: %v", err)
		}

		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = os.Getenv("CONFIG_PATH")
		}
		if path == "" {
			path = defaultConfigPath
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
		for _, w := range cfg.Warnings() {
			log.Printf("[WARN] %s", w)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: $CONFIG_PATH or "+defaultConfigPath+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(indicesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("EconDash %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}
