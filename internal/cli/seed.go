package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tapcore-app/tapcore/internal/app/economy"
	"github.com/tapcore-app/tapcore/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the upgrade catalog, shop items and default tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		db, err := sqlite.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		svc := economy.New(db)
		if err := svc.Seed(); err != nil {
			return fmt.Errorf("seed upgrades: %w", err)
		}
		if err := svc.SeedContent(); err != nil {
			return fmt.Errorf("seed tasks and shop: %w", err)
		}

		fmt.Println("seeded upgrade catalog, shop items and default tasks")
		return nil
	},
}
