// File: cmd/ayutrace/commands.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smartdevs17/ayutrace/internal/config"
	"github.com/smartdevs17/ayutrace/internal/models"
)

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "ayutrace",
	Short:   "Herbal supply-chain traceability ledger",
	Long:    `AyuTrace records collection, processing, quality-test and packing events for herbal lots in a tamper-evident per-lot hash chain and serves consumer provenance traces.`,
	Version: AppVersion,
	RunE:    runServer,
}

// loadConfig loads and validates configuration, applying CLI overrides
func loadConfig(cmd *cobra.Command, oneShot bool) (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = viper.GetString("log-level")
	}
	if viper.GetBool("debug") {
		cfg.Logging.Level = "debug"
	}
	if oneShot && cfg.Logging.Output != "file" {
		// Keep stdout for command output
		cfg.Logging.Output = "stderr"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// withApplication runs fn against a fully wired application and stops it afterwards
func withApplication(cmd *cobra.Command, fn func(app *Application) error) error {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Stop()

	return fn(app)
}

// runServer is the main command to run the API server
func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, false)
	if err != nil {
		return err
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Set up signal handling for graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		app.Stop()
		return fmt.Errorf("failed to start application: %w", err)
	}

	// Wait for shutdown signal
	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	return app.Stop()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("AyuTrace %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Storage: %s\n", cfg.Storage.Type)
		fmt.Printf("Anchor: %s\n", cfg.Anchor.Type)
		fmt.Printf("Recommended tests: %d\n", len(cfg.Compliance.RecommendedTests))
		return nil
	},
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed reference data",
}

// seedThresholdsCmd inserts missing compliance thresholds. Existing limits are left alone.
var seedThresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Insert missing compliance thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(app *Application) error {
			// Seeding runs as part of application start-up
			all, err := app.thresholds.List(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Printf("Inserted %d thresholds, %d stored\n", app.seeded, len(all))
			for _, t := range all {
				fmt.Printf("  %-14s %-24s %s\n", t.TestType, t.Parameter, t.Unit)
			}
			return nil
		})
	},
}

// verifyCmd verifies a lot's chain
var verifyCmd = &cobra.Command{
	Use:   "verify <lotId>",
	Short: "Verify the ledger chain of a lot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(app *Application) error {
			result, err := app.verifier.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printVerification(result)
			if !result.Valid {
				return fmt.Errorf("ledger chain of lot %s is not valid", args[0])
			}
			return nil
		})
	},
}

func printVerification(result *models.VerificationResult) {
	if result.Valid {
		color.New(color.FgGreen, color.Bold).Print("VALID")
	} else {
		color.New(color.FgRed, color.Bold).Print("INVALID")
	}
	fmt.Printf("  lot=%s entries=%d  %s\n", result.LotID, result.EntriesChecked, result.Message)
	if result.BrokenAt != "" {
		color.Yellow("  first failing entry: %s", result.BrokenAt)
	}
}

// chainCmd prints a lot's chain
var chainCmd = &cobra.Command{
	Use:   "chain <lotId>",
	Short: "Print the ledger chain of a lot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(app *Application) error {
			chain, err := app.engine.ChainFor(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(chain)
		})
	},
}

// traceCmd prints the provenance trace of a pack
var traceCmd = &cobra.Command{
	Use:   "trace <packId>",
	Short: "Print the provenance trace of a pack",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(app *Application) error {
			trace, err := app.aggregator.Trace(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(trace)
		})
	},
}

// statsCmd prints application statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print storage and processor statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(cmd, func(app *Application) error {
			return printJSON(app.GetStats())
		})
	},
}

// init initializes the CLI commands
func init() {
	// Add persistent flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(statsCmd)
	configCmd.AddCommand(validateConfigCmd)
	seedCmd.AddCommand(seedThresholdsCmd)
}
