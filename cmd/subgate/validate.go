package main

import (
	"fmt"

	"github.com/artpar/subgate/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Store:    %s\n", cfg.Database.Driver)
		fmt.Printf("  Notify:   %s\n", cfg.Notify.Mode)
		fmt.Printf("  Rollover: %s (grace %s)\n", cfg.Rollover.Schedule, cfg.Rollover.Grace)
		fmt.Printf("  Plans:    %d\n", len(cfg.Plans))
		for _, p := range cfg.Plans {
			fmt.Printf("    %-12s %d grants\n", p.ID, len(p.Grants))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
