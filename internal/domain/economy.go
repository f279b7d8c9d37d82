package domain

import (
	"math"
	"time"
)

// ─── Upgrade Catalog ────────────────────────────────────────────────────────

// Upgrade keys known to the economy. The three automation tiers each feed
// the passive income ticker at a fixed interval and rate.
const (
	UpgradeClick      = "click"
	UpgradeAutoclick  = "autoclick"
	UpgradeMegaclick  = "megaclick"
	UpgradeSuperclick = "superclick"
	UpgradeMaxEnergy  = "maxEnergy"
)

// DefaultPriceMultiplier is the stock exponential price growth, ×100 (1.35).
const DefaultPriceMultiplier = 135

// DefaultUpgrades returns the stock upgrade catalog used to seed a fresh
// database. Admins can retune prices afterwards.
func DefaultUpgrades() []Upgrade {
	return []Upgrade{
		{Key: UpgradeClick, Title: "Click Power", Description: "Earn +1 crystal per click per level", BasePrice: 10, PriceMultiplier: 135, MaxLevel: 100, ValuePerLevel: 1},
		{Key: UpgradeAutoclick, Title: "Autoclick", Description: "One automatic click every 2 seconds per level", BasePrice: 25, PriceMultiplier: 135, MaxLevel: 50, ValuePerLevel: 1},
		{Key: UpgradeMegaclick, Title: "Megaclick", Description: "One automatic click every second per level", BasePrice: 60, PriceMultiplier: 140, MaxLevel: 30, ValuePerLevel: 1},
		{Key: UpgradeSuperclick, Title: "Superclick", Description: "Two automatic clicks every second per level", BasePrice: 140, PriceMultiplier: 150, MaxLevel: 20, ValuePerLevel: 1},
		{Key: UpgradeMaxEnergy, Title: "Energy Tank", Description: "+25 max energy per level", BasePrice: 15, PriceMultiplier: 130, MaxLevel: 100, ValuePerLevel: 25},
	}
}

// DefaultTasks is the stock task list seeded into an empty database.
func DefaultTasks() []Task {
	return []Task{
		{Type: TaskDaily, Action: ActionClick, TargetValue: 50, Reward: 50, Title: "Make 50 clicks", Description: "Tap the crystal 50 times", Active: true},
		{Type: TaskDaily, Action: ActionEarn, TargetValue: 300, Reward: 75, Title: "Earn 300 crystals", Description: "Accumulate 300 crystals", Active: true},
		{Type: TaskDaily, Action: ActionBuyUpgrade, TargetValue: 1, Reward: 100, Title: "Buy an upgrade", Description: "Buy any upgrade", Active: true},
		{Type: TaskWeekly, Action: ActionTransfer, TargetValue: 100, Reward: 200, Title: "Transfer 100 crystals", Description: "Send 100 crystals to a friend", Active: true},
		{Type: TaskWeekly, Action: ActionEarn, TargetValue: 2000, Reward: 500, Title: "Earn 2000 crystals", Description: "Accumulate 2000 crystals this week", Active: true},
	}
}

// DefaultShopItems is the stock crystal-pack catalog.
func DefaultShopItems() []ShopItem {
	return []ShopItem{
		{Crystals: 100, Stars: 1, Active: true},
		{Crystals: 550, Stars: 5, Active: true},
		{Crystals: 1200, Stars: 10, Active: true},
		{Crystals: 2500, Stars: 20, Active: true},
		{Crystals: 6500, Stars: 50, Active: true},
	}
}

// ─── Economy Formulas ───────────────────────────────────────────────────────

// UpgradePrice returns the cost of advancing from level to level+1:
// floor(basePrice × (multiplier/100)^level).
func (u Upgrade) UpgradePrice(level int) int64 {
	m := float64(u.PriceMultiplier) / 100.0
	return int64(math.Floor(float64(u.BasePrice) * math.Pow(m, float64(level))))
}

// ClickPower returns crystals earned per manual click at the given click
// upgrade level.
func ClickPower(baseValue int64, clickLevel int, valuePerLevel int64) int64 {
	if valuePerLevel <= 0 {
		valuePerLevel = 1
	}
	return baseValue + int64(clickLevel)*valuePerLevel
}

// MaxEnergyFor returns the energy cap for a maxEnergy upgrade level.
// Base cap is 100, each level adds 25.
func MaxEnergyFor(level int) int {
	return 100 + level*25
}

// PassivePerSecond returns the aggregate automation income per second for
// the three tier levels: 0.5/s per autoclick, 1/s per megaclick, 2/s per
// superclick.
func PassivePerSecond(autoclick, megaclick, superclick int) float64 {
	return float64(autoclick)*0.5 + float64(megaclick)*1.0 + float64(superclick)*2.0
}

// TierInterval returns the tick interval for an automation tier, or zero for
// non-automation keys.
func TierInterval(key string) time.Duration {
	switch key {
	case UpgradeAutoclick:
		return 2 * time.Second
	case UpgradeMegaclick:
		return time.Second
	case UpgradeSuperclick:
		return 500 * time.Millisecond
	default:
		return 0
	}
}

// ─── Energy Regeneration ────────────────────────────────────────────────────

// RegenerateEnergy applies server-side energy catch-up: perSecond energy per
// elapsed second since lastUpdate, clamped to maxEnergy. It returns the new
// energy and the timestamp to record. When nothing accrues (sub-second
// elapsed, or already at cap with nothing to add) the inputs are returned
// unchanged so callers can skip the write.
func RegenerateEnergy(energy, maxEnergy int, lastUpdate, now time.Time, perSecond int) (int, time.Time) {
	if perSecond <= 0 {
		perSecond = 1
	}
	if lastUpdate.IsZero() || now.Before(lastUpdate) {
		return energy, now
	}
	gained := int(now.Sub(lastUpdate).Seconds()) * perSecond
	if gained <= 0 {
		return energy, lastUpdate
	}
	regenerated := energy + gained
	if regenerated > maxEnergy {
		regenerated = maxEnergy
	}
	if regenerated == energy {
		return energy, now
	}
	return regenerated, now
}

// ─── Task Periods ───────────────────────────────────────────────────────────

// PeriodStart returns the start date of the current period for a task type:
// today for daily tasks, the most recent Monday for weekly ones. The result
// is truncated to midnight in the supplied time's location.
func PeriodStart(taskType TaskType, now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if taskType != TaskWeekly {
		return day
	}
	// time.Weekday puts Sunday at 0; shift so Monday is the period anchor.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
