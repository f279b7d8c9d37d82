package economy

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
	"github.com/tapcore-app/tapcore/internal/infra/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := New(db)
	if err := svc.Seed(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return svc, db
}

// fixClock pins the service clock and returns a function to advance it.
func fixClock(svc *Service, start time.Time) func(time.Duration) {
	current := start
	svc.now = func() time.Time { return current }
	return func(d time.Duration) { current = current.Add(d) }
}

func TestCreateOrGetUser(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.CreateOrGetUser(42, domain.Profile{Username: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Balance != 0 || created.Energy != 100 {
		t.Errorf("fresh user = %+v", created)
	}

	again, err := svc.CreateOrGetUser(42, domain.Profile{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("second call created a new user: %d != %d", again.ID, created.ID)
	}
}

func TestClick(t *testing.T) {
	svc, _ := newTestService(t)
	advance := fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	_ = advance

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})

	after, err := svc.Click(user.ID, 3)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if after.Energy != 97 {
		t.Errorf("energy = %d, want 97", after.Energy)
	}
	if after.Balance != 3 { // base click power 1
		t.Errorf("balance = %d, want 3", after.Balance)
	}
}

func TestClick_NotEnoughEnergy(t *testing.T) {
	svc, db := newTestService(t)
	advance := fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	_ = advance

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.SetEnergy(user.ID, 2, svc.now())

	_, err := svc.Click(user.ID, 5)
	if !errors.Is(err, domain.ErrNotEnoughEnergy) {
		t.Fatalf("err = %v, want ErrNotEnoughEnergy", err)
	}

	// Authority rejected: nothing changed.
	u, _ := db.GetUser(user.ID)
	if u.Balance != 0 || u.Energy != 2 {
		t.Errorf("state mutated on rejected click: %+v", u)
	}
}

func TestClick_ConcurrentClicksCannotShareEnergy(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.SetEnergy(user.ID, 5, svc.now())

	var wg sync.WaitGroup
	var accepted atomic.Int64
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Click(user.ID, 1); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	// Only 5 energy existed, so only 5 clicks may settle; every credited
	// crystal must have been paid for.
	if accepted.Load() != 5 {
		t.Errorf("accepted = %d, want 5", accepted.Load())
	}
	after, _ := db.GetUser(user.ID)
	if after.Energy != 0 {
		t.Errorf("energy = %d, want 0", after.Energy)
	}
	if after.Balance != 5 {
		t.Errorf("balance = %d, want 5 (one crystal per energy spent)", after.Balance)
	}
}

func TestClick_PowerScalesWithUpgrade(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.AddBalance(user.ID, 100)

	if _, err := svc.BuyUpgrade(user.ID, domain.UpgradeClick); err != nil { // power 1 → 2
		t.Fatalf("buy: %v", err)
	}
	before, _ := db.GetUser(user.ID)

	after, err := svc.Click(user.ID, 5)
	if err != nil {
		t.Fatalf("click: %v", err)
	}
	if after.Balance != before.Balance+10 { // 5 clicks × power 2
		t.Errorf("balance = %d, want %d", after.Balance, before.Balance+10)
	}
}

func TestClick_EnergyRegenCatchUp(t *testing.T) {
	svc, db := newTestService(t)
	advance := fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.SetEnergy(user.ID, 0, svc.now())

	// Drained now, but 30 seconds later the server regenerated 30 energy.
	advance(30 * time.Second)
	after, err := svc.Click(user.ID, 10)
	if err != nil {
		t.Fatalf("click after regen: %v", err)
	}
	if after.Energy != 20 {
		t.Errorf("energy = %d, want 20 (30 regenerated − 10 spent)", after.Energy)
	}
}

func TestPassive(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.SetEnergy(user.ID, 5, svc.now())

	after, err := svc.Passive(user.ID, 4)
	if err != nil {
		t.Fatalf("passive: %v", err)
	}
	if after.Balance != 4 {
		t.Errorf("balance = %d, want 4", after.Balance)
	}
	if after.Energy != 5 {
		t.Errorf("passive income spent energy: %d, want 5", after.Energy)
	}
}

func TestBuyUpgrade_MaxEnergyRaisesCap(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.AddBalance(user.ID, 100)

	level, err := svc.BuyUpgrade(user.ID, domain.UpgradeMaxEnergy)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if level != 1 {
		t.Errorf("level = %d, want 1", level)
	}

	after, _ := db.GetUser(user.ID)
	if after.MaxEnergy != 125 {
		t.Errorf("max energy = %d, want 125", after.MaxEnergy)
	}
}

func TestBuyUpgrade_FailureLeavesStateUnchanged(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.AddBalance(user.ID, 5) // click costs 10

	_, err := svc.BuyUpgrade(user.ID, domain.UpgradeClick)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	after, _ := db.GetUser(user.ID)
	if after.Balance != 5 {
		t.Errorf("balance = %d, want 5", after.Balance)
	}
	states, _ := svc.UpgradesFor(user.ID)
	for _, s := range states {
		if s.Level != 0 {
			t.Errorf("%s level = %d, want 0", s.Key, s.Level)
		}
	}
}

func TestClickAdvancesTasks(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	db.InsertTask(domain.Task{Type: domain.TaskDaily, Action: domain.ActionClick, TargetValue: 10, Reward: 100, Title: "Clicker", Active: true})
	db.InsertTask(domain.Task{Type: domain.TaskDaily, Action: domain.ActionEarn, TargetValue: 5, Reward: 50, Title: "Earner", Active: true})

	svc.Click(user.ID, 6)

	tasks, _ := svc.TasksFor(user.ID, "")
	byTitle := map[string]domain.TaskProgress{}
	for _, task := range tasks {
		byTitle[task.Title] = task
	}
	if byTitle["Clicker"].Progress != 6 {
		t.Errorf("click task progress = %d, want 6", byTitle["Clicker"].Progress)
	}
	if byTitle["Earner"].Progress != 6 || !byTitle["Earner"].IsCompleted {
		t.Errorf("earn task = %+v, want progress 6 completed", byTitle["Earner"])
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{Username: "alice"})
	db.AddBalance(user.ID, 42)

	updated, err := svc.UpdateProfile(user.ID, domain.Profile{Username: "alice2", PhotoURL: "https://t.me/p.jpg"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Username != "alice2" || updated.PhotoURL != "https://t.me/p.jpg" {
		t.Errorf("profile = %+v", updated)
	}
	if updated.Balance != 42 {
		t.Errorf("balance changed on profile update: %d", updated.Balance)
	}

	if _, err := svc.UpdateProfile(9999, domain.Profile{}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown user err = %v, want ErrUserNotFound", err)
	}
}

func TestTransferByUsername(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	sender, _ := svc.CreateOrGetUser(1, domain.Profile{Username: "alice"})
	receiver, _ := svc.CreateOrGetUser(2, domain.Profile{Username: "bob"})
	db.AddBalance(sender.ID, 100)

	tr, err := svc.Transfer(sender.ID, 0, "bob", 30)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if tr.ReceiverID != receiver.ID || tr.Amount != 30 {
		t.Errorf("transfer = %+v", tr)
	}

	if _, err := svc.Transfer(sender.ID, 0, "nobody", 10); !errors.Is(err, domain.ErrReceiverNotFound) {
		t.Errorf("unknown receiver err = %v, want ErrReceiverNotFound", err)
	}
}

func TestShopFlow(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	itemID, _ := db.InsertShopItem(domain.ShopItem{Crystals: 1000, Stars: 50, Active: true})

	inv, err := svc.CreateInvoice(itemID)
	if err != nil {
		t.Fatalf("invoice: %v", err)
	}
	if inv.ID == "" || inv.Stars != 50 {
		t.Errorf("invoice = %+v", inv)
	}

	u, crystals, err := svc.ConfirmPayment(user.ID, itemID, "tg-payment-abc")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if crystals != 1000 || u.Balance != 1000 {
		t.Errorf("crystals = %d, balance = %d; want 1000, 1000", crystals, u.Balance)
	}

	if _, _, err := svc.ConfirmPayment(user.ID, itemID, "  "); !errors.Is(err, domain.ErrInvalidPayment) {
		t.Errorf("blank proof err = %v, want ErrInvalidPayment", err)
	}
}

func TestShopInactiveItem(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	itemID, _ := db.InsertShopItem(domain.ShopItem{Crystals: 100, Stars: 5, Active: false})

	if _, err := svc.PurchaseItem(user.ID, itemID); !errors.Is(err, domain.ErrItemUnavailable) {
		t.Errorf("err = %v, want ErrItemUnavailable", err)
	}
}

func TestChatValidation(t *testing.T) {
	svc, _ := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	user, _ := svc.CreateOrGetUser(1, domain.Profile{Username: "alice"})

	if _, err := svc.SendChatMessage(user.ID, "   "); !errors.Is(err, domain.ErrInvalidMessage) {
		t.Errorf("blank message err = %v, want ErrInvalidMessage", err)
	}

	msg, err := svc.SendChatMessage(user.ID, "  gm  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Text != "gm" || msg.Username != "alice" {
		t.Errorf("message = %+v", msg)
	}

	messages, _ := svc.ChatMessages(10, 0)
	if len(messages) != 1 {
		t.Errorf("expected 1 message, got %d", len(messages))
	}
}

func TestSeedContent(t *testing.T) {
	svc, db := newTestService(t)

	if err := svc.SeedContent(); err != nil {
		t.Fatalf("seed content: %v", err)
	}
	tasks, _ := db.ListTasks("")
	if len(tasks) != 5 {
		t.Errorf("tasks = %d, want 5", len(tasks))
	}
	items, _ := db.ListShopItems(false)
	if len(items) != 5 {
		t.Errorf("shop items = %d, want 5", len(items))
	}

	// Re-running must not duplicate curated content.
	if err := svc.SeedContent(); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	tasks, _ = db.ListTasks("")
	if len(tasks) != 5 {
		t.Errorf("tasks after reseed = %d, want 5", len(tasks))
	}
}

func TestClickValueSetting(t *testing.T) {
	svc, db := newTestService(t)
	fixClock(svc, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if svc.ClickValue() != 1 {
		t.Errorf("default click value = %d, want 1", svc.ClickValue())
	}

	db.SetSetting(SettingClickValue, "5", "")
	user, _ := svc.CreateOrGetUser(1, domain.Profile{})
	after, _ := svc.Click(user.ID, 2)
	if after.Balance != 10 {
		t.Errorf("balance = %d, want 10 (2 clicks × base 5)", after.Balance)
	}
}
