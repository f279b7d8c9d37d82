// Package store implements the client-side economy store: an optimistic
// cache of one user's balance, energy and progression, reconciled against
// the server, which stays authoritative.
//
// The store applies clicks optimistically so the UI feels instant, then
// overwrites its numbers wholesale with whatever the server answers. All
// other mutations (upgrades, claims, transfers, purchases) wait for the
// server before touching local state.
package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// Backend is the server the store reconciles against. internal/client
// implements it over HTTP; tests implement it in-memory.
type Backend interface {
	Bootstrap(ctx context.Context, telegramID int64, profile domain.Profile) (domain.User, error)
	User(ctx context.Context, userID int64) (domain.User, error)
	Click(ctx context.Context, userID int64, clicks int) (domain.User, error)
	PassiveTick(ctx context.Context, userID int64, ticks int) (domain.User, error)
	Upgrades(ctx context.Context, userID int64) ([]domain.UpgradeState, error)
	BuyUpgrade(ctx context.Context, userID int64, key string) error
	Tasks(ctx context.Context, userID int64) ([]domain.TaskProgress, error)
	ClaimTask(ctx context.Context, userID, taskID int64) error
	Transfer(ctx context.Context, senderID int64, receiverUsername string, amount int64) error
	Purchase(ctx context.Context, userID, itemID int64) error
	ConfirmPayment(ctx context.Context, userID, itemID int64, paymentID string) error
	ClickValue(ctx context.Context) (int64, error)
}

// InitializationError is a terminal bootstrap failure: the store has no
// authoritative state to fall back on.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("store initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Store caches one user's economy state and keeps it converging toward the
// server's. Safe for concurrent callers.
type Store struct {
	backend Backend

	mu         sync.Mutex
	closed     bool
	userID     int64
	snap       domain.EconomySnapshot
	upgrades   []domain.UpgradeState
	tasks      []domain.TaskProgress
	clickValue int64
}

// New creates a store over the given backend. Call Initialize before use.
func New(backend Backend) *Store {
	return &Store{backend: backend, clickValue: 1}
}

// ─── Pure Transitions ───────────────────────────────────────────────────────

// applyClicks is the optimistic click transition. The caller has already
// checked energy >= n.
func applyClicks(snap domain.EconomySnapshot, n int) domain.EconomySnapshot {
	snap.Balance += int64(n) * snap.ClickPower
	snap.Energy -= n
	return snap
}

// applyPassive is the optimistic passive-tick transition: income without
// energy cost.
func applyPassive(snap domain.EconomySnapshot, n int) domain.EconomySnapshot {
	snap.Balance += int64(n) * snap.ClickPower
	return snap
}

// reconcile overwrites the cached numbers with the server's. Authoritative
// values replace optimistic ones wholesale, never merge.
func reconcile(snap domain.EconomySnapshot, user domain.User) domain.EconomySnapshot {
	snap.UserID = user.ID
	snap.Balance = user.Balance
	snap.Energy = user.Energy
	snap.MaxEnergy = user.MaxEnergy
	return snap
}

// clickPowerFrom recomputes click power from the base click value and the
// click upgrade's level in the given states.
func clickPowerFrom(clickValue int64, upgrades []domain.UpgradeState) int64 {
	level := 0
	for _, u := range upgrades {
		if u.Key == domain.UpgradeClick {
			level = u.Level
			break
		}
	}
	perLevel := int64(1)
	for _, u := range domain.DefaultUpgrades() {
		if u.Key == domain.UpgradeClick {
			perLevel = u.ValuePerLevel
			break
		}
	}
	return domain.ClickPower(clickValue, level, perLevel)
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Initialize bootstraps the user on the server and loads the initial
// snapshot, upgrade states and task list. Any failure is terminal.
func (s *Store) Initialize(ctx context.Context, telegramID int64, profile domain.Profile) error {
	user, err := s.backend.Bootstrap(ctx, telegramID, profile)
	if err != nil {
		return &InitializationError{Err: err}
	}
	clickValue, err := s.backend.ClickValue(ctx)
	if err != nil {
		return &InitializationError{Err: err}
	}
	upgrades, err := s.backend.Upgrades(ctx, user.ID)
	if err != nil {
		return &InitializationError{Err: err}
	}
	tasks, err := s.backend.Tasks(ctx, user.ID)
	if err != nil {
		return &InitializationError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &InitializationError{Err: fmt.Errorf("store is closed")}
	}
	s.userID = user.ID
	s.clickValue = clickValue
	s.upgrades = upgrades
	s.tasks = tasks
	s.snap = reconcile(domain.EconomySnapshot{}, user)
	s.snap.ClickPower = clickPowerFrom(clickValue, upgrades)
	return nil
}

// Close stops the store from accepting further writes. Responses from calls
// already in flight are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Snapshot returns the current cached economy numbers.
func (s *Store) Snapshot() domain.EconomySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Upgrades returns the cached upgrade states.
func (s *Store) Upgrades() []domain.UpgradeState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UpgradeState, len(s.upgrades))
	copy(out, s.upgrades)
	return out
}

// Tasks returns the cached task progress list.
func (s *Store) Tasks() []domain.TaskProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TaskProgress, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// UpgradeLevels returns the cached level per upgrade key.
func (s *Store) UpgradeLevels() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	levels := make(map[string]int, len(s.upgrades))
	for _, u := range s.upgrades {
		levels[u.Key] = u.Level
	}
	return levels
}

// ─── Optimistic Operations ──────────────────────────────────────────────────

// ApplyClick registers n manual clicks. When cached energy is short the
// click is dropped without error; taps on an empty energy bar are routine,
// not failures. Otherwise the snapshot is updated optimistically and the
// server's answer overwrites it.
func (s *Store) ApplyClick(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if s.snap.Energy < n {
		s.mu.Unlock()
		log.Printf("[store] click x%d dropped: energy short", n)
		return nil
	}
	s.snap = applyClicks(s.snap, n)
	userID := s.userID
	s.mu.Unlock()

	user, err := s.backend.Click(ctx, userID, n)
	if err != nil {
		// The optimistic numbers may now be wrong. Reconcile.
		log.Printf("[store] click x%d failed, refreshing: %v", n, err)
		return s.Refresh(ctx)
	}
	s.overwrite(user)
	// Server-side task progress advances on clicks and earnings.
	if err := s.RefreshTasks(ctx); err != nil {
		log.Printf("[store] task refresh after click failed: %v", err)
	}
	return nil
}

// ApplyPassiveTick registers n passive income ticks. No energy is spent.
func (s *Store) ApplyPassiveTick(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.snap = applyPassive(s.snap, n)
	userID := s.userID
	s.mu.Unlock()

	user, err := s.backend.PassiveTick(ctx, userID, n)
	if err != nil {
		log.Printf("[store] passive tick x%d failed, refreshing: %v", n, err)
		return s.Refresh(ctx)
	}
	s.overwrite(user)
	if err := s.RefreshTasks(ctx); err != nil {
		log.Printf("[store] task refresh after passive tick failed: %v", err)
	}
	return nil
}

// ─── Refresh ────────────────────────────────────────────────────────────────

// Refresh replaces the cached snapshot with the server's current state.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	s.mu.Unlock()

	user, err := s.backend.User(ctx, userID)
	if err != nil {
		return err
	}
	s.overwrite(user)
	return nil
}

// RefreshUpgrades reloads the upgrade states and recomputes click power.
func (s *Store) RefreshUpgrades(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	s.mu.Unlock()

	upgrades, err := s.backend.Upgrades(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.upgrades = upgrades
	s.snap.ClickPower = clickPowerFrom(s.clickValue, upgrades)
	return nil
}

// RefreshTasks reloads the task progress list.
func (s *Store) RefreshTasks(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	userID := s.userID
	s.mu.Unlock()

	tasks, err := s.backend.Tasks(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.tasks = tasks
	return nil
}

// ─── Negotiated Operations ──────────────────────────────────────────────────
//
// Nothing below is optimistic. Local state changes only after the server
// confirms, so a rejected purchase leaves the snapshot untouched.

// BuyUpgrade asks the server to buy one level of the given upgrade. Returns
// whether the purchase settled.
func (s *Store) BuyUpgrade(ctx context.Context, key string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	userID := s.userID
	s.mu.Unlock()

	if err := s.backend.BuyUpgrade(ctx, userID, key); err != nil {
		log.Printf("[store] buy %s rejected: %v", key, err)
		return false
	}
	s.refreshAfterMutation(ctx)
	return true
}

// ClaimTask claims a completed task's reward.
func (s *Store) ClaimTask(ctx context.Context, taskID int64) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	userID := s.userID
	s.mu.Unlock()

	if err := s.backend.ClaimTask(ctx, userID, taskID); err != nil {
		log.Printf("[store] claim task %d rejected: %v", taskID, err)
		return false
	}
	s.refreshAfterMutation(ctx)
	return true
}

// Transfer sends crystals to another user. The local precondition
// (amount > 0 and amount <= cached balance) is checked first; a violation
// fails immediately without a network call.
func (s *Store) Transfer(ctx context.Context, receiverUsername string, amount int64) bool {
	s.mu.Lock()
	if s.closed || amount <= 0 || amount > s.snap.Balance {
		s.mu.Unlock()
		return false
	}
	userID := s.userID
	s.mu.Unlock()

	if err := s.backend.Transfer(ctx, userID, receiverUsername, amount); err != nil {
		log.Printf("[store] transfer %d to %q rejected: %v", amount, receiverUsername, err)
		return false
	}
	s.refreshAfterMutation(ctx)
	return true
}

// Purchase buys a shop item with a direct balance debit.
func (s *Store) Purchase(ctx context.Context, itemID int64) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	userID := s.userID
	s.mu.Unlock()

	if err := s.backend.Purchase(ctx, userID, itemID); err != nil {
		log.Printf("[store] purchase item %d rejected: %v", itemID, err)
		return false
	}
	s.refreshAfterMutation(ctx)
	return true
}

// PurchaseWithPayment settles a shop item against an external payment proof.
func (s *Store) PurchaseWithPayment(ctx context.Context, itemID int64, paymentID string) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	userID := s.userID
	s.mu.Unlock()

	if err := s.backend.ConfirmPayment(ctx, userID, itemID, paymentID); err != nil {
		log.Printf("[store] payment for item %d rejected: %v", itemID, err)
		return false
	}
	s.refreshAfterMutation(ctx)
	return true
}

// ─── Internal ───────────────────────────────────────────────────────────────

// overwrite installs an authoritative user record into the snapshot unless
// the store has been closed in the meantime.
func (s *Store) overwrite(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.snap = reconcile(s.snap, user)
}

// refreshAfterMutation pulls user, upgrades and tasks after a settled
// mutation. Errors only mean the cache stays stale until the next sync.
func (s *Store) refreshAfterMutation(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		log.Printf("[store] post-mutation refresh failed: %v", err)
	}
	if err := s.RefreshUpgrades(ctx); err != nil {
		log.Printf("[store] post-mutation upgrade refresh failed: %v", err)
	}
	if err := s.RefreshTasks(ctx); err != nil {
		log.Printf("[store] post-mutation task refresh failed: %v", err)
	}
}
