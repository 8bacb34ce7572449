// Command gridctl is a terminal client for a delta-sync server: it keeps a
// local cache in step with the server, draws entity grids and exports them.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

// Global flag values.
var (
	flagConfigDir string
	flagServer    string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:          "gridctl",
	Short:        "gridctl syncs, browses and exports entity grids",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !flagVerbose {
			log.SetOutput(io.Discard)
		}
		dir, err := resolveConfigDir(flagConfigDir)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(dir)
		if err != nil {
			return err
		}
		if flagServer != "" {
			cfg.Set(cfgKeyServer, flagServer)
		}
		settings = cfg
		return nil
	},
}

func init() {
	log.SetFlags(log.Ltime)
	log.SetPrefix("gridctl: ")

	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $HOME/.gridctl)")
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "controller base URI, overrides config.yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log round trips and cache changes")

	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
