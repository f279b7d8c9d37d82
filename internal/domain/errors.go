package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")

	// Economy errors
	ErrNotEnoughEnergy     = errors.New("not enough energy")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// Upgrade errors
	ErrUpgradeNotFound = errors.New("upgrade not found")
	ErrMaxLevelReached = errors.New("upgrade max level reached")

	// Task errors
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskNotClaimable = errors.New("task not completed or already claimed")

	// Transfer errors
	ErrReceiverNotFound = errors.New("receiver not found")
	ErrSelfTransfer     = errors.New("cannot transfer to yourself")

	// Shop errors
	ErrItemNotFound    = errors.New("shop item not found")
	ErrItemUnavailable = errors.New("shop item is not available")
	ErrInvalidPayment  = errors.New("missing or invalid payment proof")

	// Chat errors
	ErrInvalidMessage = errors.New("message is empty or too long")
)
