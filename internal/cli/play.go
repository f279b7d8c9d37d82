package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tapcore-app/tapcore/internal/app/earnings"
	"github.com/tapcore-app/tapcore/internal/app/store"
	"github.com/tapcore-app/tapcore/internal/app/ticker"
	"github.com/tapcore-app/tapcore/internal/client"
	"github.com/tapcore-app/tapcore/internal/domain"
)

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().String("server", "http://127.0.0.1:8080", "Tapcore server URL")
	playCmd.Flags().Int64("telegram-id", 1, "Telegram user id to play as")
	playCmd.Flags().String("username", "player", "Username for the session")
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Drive an interactive session against a running server",
	Long: `Connect the client economy store and the passive income ticker to a
running Tapcore server and play from the terminal. Clicks apply
optimistically; the server stays authoritative.`,
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	telegramID, _ := cmd.Flags().GetInt64("telegram-id")
	username, _ := cmd.Flags().GetString("username")

	ctx := cmd.Context()
	c := client.New(serverURL)

	// Bootstrap once up front so we know when this user was last seen,
	// before the session's own syncs move the timestamp.
	user, err := c.Bootstrap(ctx, telegramID, domain.Profile{Username: username})
	if err != nil {
		return err
	}

	s := store.New(c)
	if err := s.Initialize(ctx, telegramID, domain.Profile{Username: username}); err != nil {
		return err
	}
	defer s.Close()

	if !user.LastEnergyUpdate.IsZero() {
		report := earnings.Report(user.LastEnergyUpdate, time.Now(), s.UpgradeLevels(), s.Snapshot().ClickPower)
		if report.CrystalsEarned > 0 {
			fmt.Println("welcome back:", report)
		}
	}

	tk := ticker.New(func(n int) {
		s.ApplyPassiveTick(context.Background(), n)
	})
	tk.Rebuild(s.UpgradeLevels())
	defer tk.Stop()

	fmt.Printf("connected to %s as %s (telegram %d)\n", serverURL, username, telegramID)
	fmt.Println("commands: click [n], buy KEY, upgrades, tasks, claim ID, transfer USER AMOUNT, shop, stats, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "click":
			n := 1
			if len(fields) > 1 {
				n, _ = strconv.Atoi(fields[1])
			}
			s.ApplyClick(ctx, n)
			printSnapshot(s)
		case "stats":
			printSnapshot(s)
			rate := earnings.Rate(s.UpgradeLevels(), s.Snapshot().ClickPower)
			fmt.Printf("  passive income: %.1f crystals/s across %d timers\n", rate, tk.ActiveTimers())
		case "upgrades":
			for _, u := range s.Upgrades() {
				fmt.Printf("  %-12s level %-3d next %d\n", u.Key, u.Level, u.NextPrice)
			}
		case "buy":
			if len(fields) < 2 {
				fmt.Println("usage: buy KEY")
				continue
			}
			if s.BuyUpgrade(ctx, fields[1]) {
				tk.Rebuild(s.UpgradeLevels())
				fmt.Println("bought")
				printSnapshot(s)
			} else {
				fmt.Println("rejected")
			}
		case "tasks":
			s.RefreshTasks(ctx)
			for _, task := range s.Tasks() {
				status := " "
				if task.IsClaimed {
					status = "claimed"
				} else if task.IsCompleted {
					status = "ready"
				}
				fmt.Printf("  [%d] %-28s %d/%d reward %d %s\n",
					task.TaskID, task.Title, task.Progress, task.TargetValue, task.Reward, status)
			}
		case "claim":
			if len(fields) < 2 {
				fmt.Println("usage: claim ID")
				continue
			}
			id, _ := strconv.ParseInt(fields[1], 10, 64)
			if s.ClaimTask(ctx, id) {
				fmt.Println("claimed")
				printSnapshot(s)
			} else {
				fmt.Println("rejected")
			}
		case "transfer":
			if len(fields) < 3 {
				fmt.Println("usage: transfer USER AMOUNT")
				continue
			}
			amount, _ := strconv.ParseInt(fields[2], 10, 64)
			if s.Transfer(ctx, fields[1], amount) {
				fmt.Println("sent")
				printSnapshot(s)
			} else {
				fmt.Println("rejected")
			}
		case "shop":
			items, err := c.ShopItems(ctx)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for _, item := range items {
				fmt.Printf("  [%d] %d crystals for %d stars\n", item.ID, item.Crystals, item.Stars)
			}
		case "top":
			entries, err := c.Leaderboard(ctx, 10)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			for i, e := range entries {
				fmt.Printf("  %2d. %-16s %d\n", i+1, e.Username, e.Balance)
			}
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func printSnapshot(s *store.Store) {
	snap := s.Snapshot()
	fmt.Printf("  balance %d | energy %d/%d | click power %d\n",
		snap.Balance, snap.Energy, snap.MaxEnergy, snap.ClickPower)
}
