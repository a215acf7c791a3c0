// Command brawler drives a combat robot from an FS-iA6B receiver, with an
// autonomous mode that hunts an opponent through the camera.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-brawler/internal/config"
	"github.com/teslashibe/go-brawler/internal/log"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "brawler",
	Short: "Combat robot controller",
	Long: `brawler reads an FS-iA6B receiver over iBus, arbitrates between the
pilot and the camera-driven autonomous mode, and drives the ESCs.

The kill switch (SwB by default) always wins and latches until restart.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, decodeCmd, watchCmd, calibrateCmd, configCmd)
}

// loadConfig reads the config file and sets up logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	log.Init(cfg.Log.Level)
	return cfg, nil
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
