// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import "time"

// ─── User Types ─────────────────────────────────────────────────────────────

// User is one player's persisted economic state. The server copy is
// authoritative; clients hold a cached snapshot of it.
type User struct {
	ID               int64     `json:"id"`
	TelegramID       int64     `json:"telegram_id"`
	Username         string    `json:"username,omitempty"`
	FirstName        string    `json:"first_name,omitempty"`
	LastName         string    `json:"last_name,omitempty"`
	PhotoURL         string    `json:"url_image,omitempty"`
	Balance          int64     `json:"balance"`
	Energy           int       `json:"energy"`
	MaxEnergy        int       `json:"max_energy"`
	LastEnergyUpdate time.Time `json:"last_energy_update"`
	CreatedAt        time.Time `json:"created_at"`
}

// EconomySnapshot is the client-side cached view of one user's numbers.
// ClickPower is derived, not stored server-side: base click value plus the
// click upgrade's contribution.
type EconomySnapshot struct {
	UserID     int64
	Balance    int64
	Energy     int
	MaxEnergy  int
	ClickPower int64
}

// Profile carries the optional identity fields supplied at bootstrap.
type Profile struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	PhotoURL  string `json:"url_image,omitempty"`
}

// LeaderboardEntry is a user ranked by balance.
type LeaderboardEntry struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	PhotoURL  string `json:"url_image,omitempty"`
	Balance   int64  `json:"balance"`
}

// ─── Upgrade Types ──────────────────────────────────────────────────────────

// Upgrade is a purchasable upgrade kind. Prices grow exponentially with the
// owned level; PriceMultiplier stores the growth factor ×100 (135 → 1.35).
type Upgrade struct {
	ID              int64  `json:"id"`
	Key             string `json:"key"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	BasePrice       int64  `json:"base_price"`
	PriceMultiplier int    `json:"price_multiplier"`
	MaxLevel        int    `json:"max_level"`
	ValuePerLevel   int64  `json:"value_per_level"`
}

// UserUpgrade is one user's owned level of a single upgrade kind.
type UserUpgrade struct {
	ID        int64 `json:"id"`
	UserID    int64 `json:"user_id"`
	UpgradeID int64 `json:"upgrade_id"`
	Level     int   `json:"level"`
}

// UpgradeState is the per-user upgrade view served to clients: the owned
// level joined with the price of the next one.
type UpgradeState struct {
	Key       string `json:"upgrade_key"`
	Title     string `json:"upgrade_title"`
	Level     int    `json:"level"`
	NextPrice int64  `json:"next_price"`
}

// ─── Task Types ─────────────────────────────────────────────────────────────

// TaskType is the reset period of a task.
type TaskType string

const (
	TaskDaily  TaskType = "daily"
	TaskWeekly TaskType = "weekly"
)

// ActionType names the player action a task counts.
type ActionType string

const (
	ActionClick      ActionType = "click"
	ActionEarn       ActionType = "earn"
	ActionTransfer   ActionType = "transfer"
	ActionBuyUpgrade ActionType = "buy_upgrade"
)

// Task is an admin-configured objective template.
type Task struct {
	ID          int64      `json:"id"`
	Type        TaskType   `json:"task_type"`
	Action      ActionType `json:"action_type"`
	TargetValue int64      `json:"target_value"`
	Reward      int64      `json:"reward"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"is_active"`
}

// TaskProgress is one user's progress against a task for the current period.
// IsClaimed is a one-way latch: once true it never reverts, and a claimed
// task is always completed.
type TaskProgress struct {
	TaskID      int64      `json:"task_id"`
	Type        TaskType   `json:"task_type"`
	Action      ActionType `json:"action_type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TargetValue int64      `json:"target_value"`
	Reward      int64      `json:"reward"`
	Progress    int64      `json:"progress"`
	IsCompleted bool       `json:"is_completed"`
	IsClaimed   bool       `json:"is_claimed"`
}

// ─── Transfer Types ─────────────────────────────────────────────────────────

// Transfer is a completed crystal transfer between two users.
type Transfer struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransferRecord is a transfer as seen from one user's side of it.
type TransferRecord struct {
	ID            int64     `json:"id"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
	Direction     string    `json:"direction"` // "sent" or "received"
	OtherUserID   int64     `json:"other_user_id,omitempty"`
	OtherUsername string    `json:"other_username,omitempty"`
}

// ─── Shop Types ─────────────────────────────────────────────────────────────

// ShopItem is a crystal pack sold for Telegram Stars.
type ShopItem struct {
	ID       int64 `json:"id"`
	Crystals int64 `json:"crystals"`
	Stars    int64 `json:"stars"`
	Active   bool  `json:"is_active"`
}

// Purchase records a completed shop purchase.
type Purchase struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ShopItemID int64     `json:"shop_item_id"`
	Crystals   int64     `json:"crystals"`
	Stars      int64     `json:"stars"`
	CreatedAt  time.Time `json:"created_at"`
}

// Invoice is a pending Stars payment handle for a shop item.
type Invoice struct {
	ID         string    `json:"id"`
	ShopItemID int64     `json:"shop_item_id"`
	Stars      int64     `json:"stars"`
	CreatedAt  time.Time `json:"created_at"`
}

// ─── Chat Types ─────────────────────────────────────────────────────────────

// ChatMessage is one message in the global chat.
type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
