// Package economy implements the authoritative server-side economy rules:
// energy-gated clicks, passive automation income, upgrade purchases, task
// progress side effects, transfers and the Stars shop. Every operation here
// is the final arbiter for the optimistic client store — clients may guess,
// the service decides.
package economy

import (
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tapcore-app/tapcore/internal/domain"
	"github.com/tapcore-app/tapcore/internal/infra/observability"
	"github.com/tapcore-app/tapcore/internal/infra/sqlite"
)

// Setting names tunable through the admin settings table.
const (
	SettingClickValue  = "click_value"  // base crystals per click
	SettingEnergyRegen = "energy_regen" // energy regenerated per second
	SettingChatKeep    = "chat_keep"    // chat messages retained by TrimChat
)

// Service wraps the store with the economy rules.
type Service struct {
	db  *sqlite.DB
	now func() time.Time // injectable clock for tests
}

// New creates an economy service over the given store.
func New(db *sqlite.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// ─── Users & Energy ─────────────────────────────────────────────────────────

// CreateOrGetUser returns the existing user for a Telegram id (with energy
// regeneration applied) or creates a fresh one.
func (s *Service) CreateOrGetUser(telegramID int64, profile domain.Profile) (domain.User, error) {
	user, err := s.db.GetUserByTelegramID(telegramID)
	if err == nil {
		return s.regenerate(user)
	}
	if err != domain.ErrUserNotFound {
		return domain.User{}, err
	}
	return s.db.CreateUser(telegramID, profile, s.now())
}

// GetUser returns a user by internal id with energy regeneration applied.
func (s *Service) GetUser(id int64) (domain.User, error) {
	user, err := s.db.GetUser(id)
	if err != nil {
		return domain.User{}, err
	}
	return s.regenerate(user)
}

// GetUserByTelegramID returns a user by Telegram id with energy
// regeneration applied.
func (s *Service) GetUserByTelegramID(telegramID int64) (domain.User, error) {
	user, err := s.db.GetUserByTelegramID(telegramID)
	if err != nil {
		return domain.User{}, err
	}
	return s.regenerate(user)
}

// UpdateProfile refreshes a user's identity fields from Telegram. Economy
// numbers are untouched.
func (s *Service) UpdateProfile(userID int64, profile domain.Profile) (domain.User, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return domain.User{}, err
	}
	if err := s.db.UpdateProfile(userID, profile); err != nil {
		return domain.User{}, err
	}
	return s.GetUser(userID)
}

// Leaderboard returns the top users by balance.
func (s *Service) Leaderboard(limit int) ([]domain.LeaderboardEntry, error) {
	return s.db.Leaderboard(limit)
}

// regenerate applies server-side energy catch-up and persists it when
// anything accrued.
func (s *Service) regenerate(user domain.User) (domain.User, error) {
	perSecond := int(s.db.IntSetting(SettingEnergyRegen, 1))
	energy, at := domain.RegenerateEnergy(user.Energy, user.MaxEnergy, user.LastEnergyUpdate, s.now(), perSecond)
	if energy == user.Energy && at.Equal(user.LastEnergyUpdate) {
		return user, nil
	}
	if err := s.db.SetEnergy(user.ID, energy, at); err != nil {
		return domain.User{}, err
	}
	user.Energy = energy
	user.LastEnergyUpdate = at
	return user, nil
}

// clickPowerFor returns crystals per click for a user: the admin base value
// plus the click upgrade contribution.
func (s *Service) clickPowerFor(userID int64) (int64, error) {
	base := s.db.IntSetting(SettingClickValue, 1)

	upgrade, err := s.db.GetUpgradeByKey(domain.UpgradeClick)
	if err == domain.ErrUpgradeNotFound {
		return base, nil
	}
	if err != nil {
		return 0, err
	}
	level, err := s.db.UserUpgradeLevel(userID, upgrade.ID)
	if err != nil {
		return 0, err
	}
	return domain.ClickPower(base, level, upgrade.ValuePerLevel), nil
}

// ─── Clicks & Passive Income ────────────────────────────────────────────────

// Click spends energy on manual clicks and credits the earnings. The
// regeneration, energy check, debit and credit all settle in one storage
// transaction — the client's precondition is just an optimization, never
// the safeguard, and concurrent clicks must not share an energy snapshot.
func (s *Service) Click(userID int64, clicks int) (domain.User, error) {
	if clicks <= 0 {
		return domain.User{}, domain.ErrInvalidAmount
	}
	power, err := s.clickPowerFor(userID)
	if err != nil {
		return domain.User{}, err
	}

	now := s.now()
	regen := int(s.db.IntSetting(SettingEnergyRegen, 1))
	user, err := s.db.ApplyClick(userID, clicks, power, regen, now)
	if err != nil {
		return domain.User{}, err
	}

	amount := int64(clicks) * power
	if err := s.db.AdvanceTaskProgress(userID, domain.ActionClick, int64(clicks), now); err != nil {
		return domain.User{}, err
	}
	if err := s.db.AdvanceTaskProgress(userID, domain.ActionEarn, amount, now); err != nil {
		return domain.User{}, err
	}

	observability.ClicksApplied.Add(float64(clicks))
	observability.CrystalsMinted.WithLabelValues("click").Add(float64(amount))
	return user, nil
}

// Passive credits automation ticks. No energy is checked or spent — passive
// income is energy-free by design.
func (s *Service) Passive(userID int64, ticks int) (domain.User, error) {
	if ticks <= 0 {
		return domain.User{}, domain.ErrInvalidAmount
	}
	if _, err := s.GetUser(userID); err != nil {
		return domain.User{}, err
	}

	power, err := s.clickPowerFor(userID)
	if err != nil {
		return domain.User{}, err
	}
	amount := int64(ticks) * power
	user, err := s.db.AddBalance(userID, amount)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.db.AdvanceTaskProgress(userID, domain.ActionEarn, amount, s.now()); err != nil {
		return domain.User{}, err
	}

	observability.CrystalsMinted.WithLabelValues("passive").Add(float64(amount))
	return user, nil
}

// AddBalance credits crystals directly (admin/shop plumbing).
func (s *Service) AddBalance(userID, amount int64) (domain.User, error) {
	if amount <= 0 {
		return domain.User{}, domain.ErrInvalidAmount
	}
	if _, err := s.db.GetUser(userID); err != nil {
		return domain.User{}, err
	}
	return s.db.AddBalance(userID, amount)
}

// ─── Upgrades ───────────────────────────────────────────────────────────────

// UpgradesFor returns the per-user upgrade catalog view.
func (s *Service) UpgradesFor(userID int64) ([]domain.UpgradeState, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, err
	}
	return s.db.UpgradeStatesFor(userID)
}

// BuyUpgrade purchases one level of an upgrade. On a maxEnergy purchase the
// user's energy cap is recomputed from the new level.
func (s *Service) BuyUpgrade(userID int64, key string) (int, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return 0, err
	}
	upgrade, err := s.db.GetUpgradeByKey(key)
	if err != nil {
		return 0, err
	}

	newLevel, err := s.db.BuyUpgrade(userID, upgrade)
	if err != nil {
		return 0, err
	}

	if err := s.db.AdvanceTaskProgress(userID, domain.ActionBuyUpgrade, 1, s.now()); err != nil {
		return 0, err
	}
	if key == domain.UpgradeMaxEnergy {
		if err := s.db.SetMaxEnergy(userID, domain.MaxEnergyFor(newLevel)); err != nil {
			return 0, err
		}
	}

	observability.UpgradesBought.WithLabelValues(key).Inc()
	return newLevel, nil
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksFor returns the user's task progress, optionally filtered by type.
func (s *Service) TasksFor(userID int64, taskType domain.TaskType) ([]domain.TaskProgress, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, err
	}
	return s.db.TaskProgressFor(userID, taskType, s.now())
}

// ClaimTask pays out a completed task. The claim latch lives in the store;
// a second claim fails without touching the balance.
func (s *Service) ClaimTask(userID, taskID int64) (int64, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return 0, err
	}
	reward, err := s.db.ClaimTask(userID, taskID, s.now())
	if err != nil {
		return 0, err
	}
	observability.TasksClaimed.Inc()
	observability.CrystalsMinted.WithLabelValues("task").Add(float64(reward))
	return reward, nil
}

// ─── Transfers ──────────────────────────────────────────────────────────────

// Transfer moves crystals to a receiver addressed by Telegram id or
// username. Exactly one of the two must resolve.
func (s *Service) Transfer(senderID int64, receiverTelegramID int64, receiverUsername string, amount int64) (domain.Transfer, error) {
	if _, err := s.db.GetUser(senderID); err != nil {
		return domain.Transfer{}, err
	}

	var receiver domain.User
	var err error
	switch {
	case receiverTelegramID != 0:
		receiver, err = s.db.GetUserByTelegramID(receiverTelegramID)
	case receiverUsername != "":
		receiver, err = s.db.GetUserByUsername(receiverUsername)
	default:
		return domain.Transfer{}, domain.ErrReceiverNotFound
	}
	if err != nil {
		return domain.Transfer{}, domain.ErrReceiverNotFound
	}

	transfer, err := s.db.CreateTransfer(senderID, receiver.ID, amount, s.now())
	if err != nil {
		return domain.Transfer{}, err
	}

	if err := s.db.AdvanceTaskProgress(senderID, domain.ActionTransfer, amount, s.now()); err != nil {
		return domain.Transfer{}, err
	}

	observability.TransfersCompleted.Inc()
	return transfer, nil
}

// TransferHistory returns the user's recent transfers.
func (s *Service) TransferHistory(userID int64, limit int) ([]domain.TransferRecord, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, err
	}
	return s.db.TransferHistory(userID, limit)
}

// ─── Shop & Payments ────────────────────────────────────────────────────────

// ShopItems returns the purchasable crystal packs.
func (s *Service) ShopItems() ([]domain.ShopItem, error) {
	return s.db.ListShopItems(true)
}

// PurchaseItem is the direct-debit path: the item's crystals are credited
// with no external payment proof. Used for testing and comped purchases.
func (s *Service) PurchaseItem(userID, itemID int64) (domain.Purchase, error) {
	item, err := s.activeItem(itemID)
	if err != nil {
		return domain.Purchase{}, err
	}
	purchase, err := s.db.CreatePurchase(userID, item, s.now())
	if err != nil {
		return domain.Purchase{}, err
	}
	observability.PurchasesCompleted.Inc()
	observability.CrystalsMinted.WithLabelValues("shop").Add(float64(purchase.Crystals))
	return purchase, nil
}

// CreateInvoice issues a payment handle for a shop item.
func (s *Service) CreateInvoice(itemID int64) (domain.Invoice, error) {
	item, err := s.activeItem(itemID)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv := domain.Invoice{
		ID:         uuid.NewString(),
		ShopItemID: item.ID,
		Stars:      item.Stars,
		CreatedAt:  s.now(),
	}
	if err := s.db.CreateInvoice(inv); err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

// ConfirmPayment settles a Stars payment and credits the crystals.
// TODO: verify paymentID against the Telegram Bot API before crediting;
// for now the proof is recorded but trusted, as the upstream bot already
// answered the pre-checkout query.
func (s *Service) ConfirmPayment(userID, itemID int64, paymentID string) (domain.User, int64, error) {
	if strings.TrimSpace(paymentID) == "" {
		return domain.User{}, 0, domain.ErrInvalidPayment
	}
	item, err := s.activeItem(itemID)
	if err != nil {
		return domain.User{}, 0, err
	}
	purchase, err := s.db.CreatePurchase(userID, item, s.now())
	if err != nil {
		return domain.User{}, 0, err
	}
	user, err := s.db.GetUser(userID)
	if err != nil {
		return domain.User{}, 0, err
	}
	observability.PurchasesCompleted.Inc()
	observability.CrystalsMinted.WithLabelValues("shop").Add(float64(purchase.Crystals))
	return user, purchase.Crystals, nil
}

func (s *Service) activeItem(itemID int64) (domain.ShopItem, error) {
	item, err := s.db.GetShopItem(itemID)
	if err != nil {
		return domain.ShopItem{}, err
	}
	if !item.Active {
		return domain.ShopItem{}, domain.ErrItemUnavailable
	}
	return item, nil
}

// ─── Chat ───────────────────────────────────────────────────────────────────

const maxChatMessageLen = 500

// ChatMessages returns recent global chat messages.
func (s *Service) ChatMessages(limit int, beforeID int64) ([]domain.ChatMessage, error) {
	return s.db.ListChatMessages(limit, beforeID)
}

// SendChatMessage appends a message and trims history to the configured cap.
func (s *Service) SendChatMessage(userID int64, text string) (domain.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxChatMessageLen {
		return domain.ChatMessage{}, domain.ErrInvalidMessage
	}
	if _, err := s.db.GetUser(userID); err != nil {
		return domain.ChatMessage{}, err
	}
	msg, err := s.db.InsertChatMessage(userID, text, s.now())
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if keep := s.db.IntSetting(SettingChatKeep, 500); keep > 0 {
		if _, err := s.db.TrimChat(int(keep)); err != nil {
			log.Printf("[economy] chat trim failed: %v", err)
		}
	}
	return msg, nil
}

// ─── Settings ───────────────────────────────────────────────────────────────

// ClickValue returns the admin-configured base crystals per click.
func (s *Service) ClickValue() int64 {
	return s.db.IntSetting(SettingClickValue, 1)
}

// Seed populates a fresh database with the stock upgrade catalog. Upgrade
// inserts are idempotent on key; Seed runs on every server start.
func (s *Service) Seed() error {
	for _, u := range domain.DefaultUpgrades() {
		if err := s.db.InsertUpgrade(u); err != nil {
			return err
		}
	}
	return nil
}

// SeedContent fills in the stock tasks and shop items when the respective
// tables are empty. Unlike Seed it is skipped for already-curated installs.
func (s *Service) SeedContent() error {
	tasks, err := s.db.ListTasks("")
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		for _, task := range domain.DefaultTasks() {
			if _, err := s.db.InsertTask(task); err != nil {
				return err
			}
		}
	}

	items, err := s.db.ListShopItems(false)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		for _, item := range domain.DefaultShopItems() {
			if _, err := s.db.InsertShopItem(item); err != nil {
				return err
			}
		}
	}
	return nil
}
