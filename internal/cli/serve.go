package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapcore-app/tapcore/internal/api"
	"github.com/tapcore-app/tapcore/internal/app/economy"
	"github.com/tapcore-app/tapcore/internal/daemon"
	"github.com/tapcore-app/tapcore/internal/infra/scheduler"
	"github.com/tapcore-app/tapcore/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the economy API server",
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
			return fmt.Errorf("seed catalog: %w", err)
		}
		if err := svc.SeedContent(); err != nil {
			return fmt.Errorf("seed tasks and shop: %w", err)
		}
		applySettings(db, cfg)

		srv := api.NewServer(svc)
		srv.SetClickRateLimit(cfg.API.ClickRateLimit, cfg.API.ClickBurst)
		if cfg.API.Metrics {
			srv.EnableMetrics()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go scheduler.New(db).Run(ctx)

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

		go func() {
			<-ctx.Done()
			log.Println("[serve] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			httpSrv.Shutdown(shutdownCtx)
		}()

		log.Printf("[serve] listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	},
}

// applySettings pushes config-file economy tuning into the settings table so
// the service reads one source of truth at runtime.
func applySettings(db *sqlite.DB, cfg daemon.Config) {
	set := func(name, value, description string) {
		if err := db.SetSetting(name, value, description); err != nil {
			log.Printf("[serve] set %s: %v", name, err)
		}
	}
	set(economy.SettingClickValue, strconv.FormatInt(cfg.Economy.ClickValue, 10), "base crystals per click")
	set(economy.SettingEnergyRegen, strconv.Itoa(cfg.Economy.EnergyRegen), "energy regenerated per second")
	set(economy.SettingChatKeep, strconv.Itoa(cfg.Chat.KeepMessages), "chat messages kept")
}
