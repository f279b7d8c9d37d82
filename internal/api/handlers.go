package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── Error Mapping ──────────────────────────────────────────────────────────

// writeDomainError maps domain sentinel errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrUpgradeNotFound),
		errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrReceiverNotFound),
		errors.Is(err, domain.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotEnoughEnergy),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrMaxLevelReached),
		errors.Is(err, domain.ErrTaskNotClaimable),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrItemUnavailable),
		errors.Is(err, domain.ErrInvalidPayment),
		errors.Is(err, domain.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// ─── User Handlers ──────────────────────────────────────────────────────────

type createUserRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	PhotoURL   string `json:"url_image,omitempty"`
}

// POST /users — create a user or return the existing one for the Telegram id.
func (s *Server) handleCreateOrGetUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TelegramID == 0 {
		writeError(w, http.StatusBadRequest, "telegram_id is required")
		return
	}

	user, err := s.svc.CreateOrGetUser(req.TelegramID, domain.Profile{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PhotoURL:  req.PhotoURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GET /users/{userID}
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := s.svc.GetUser(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	PhotoURL  string `json:"url_image,omitempty"`
}

// PATCH /users/{userID} — refresh the Telegram identity fields.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	user, err := s.svc.UpdateProfile(id, domain.Profile{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		PhotoURL:  req.PhotoURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /users/by-telegram/{telegramID}
func (s *Server) handleGetUserByTelegram(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "telegramID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid telegram id")
		return
	}
	user, err := s.svc.GetUserByTelegramID(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /users/leaderboard?limit=
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.Leaderboard(queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ─── Click Handlers ─────────────────────────────────────────────────────────

type clickRequest struct {
	Clicks int `json:"clicks"`
}

// POST /users/{userID}/click
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Clicks <= 0 {
		req.Clicks = 1
	}

	if !s.clickLimiter(id).AllowN(time.Now(), req.Clicks) {
		writeError(w, http.StatusTooManyRequests, "click rate limit exceeded")
		return
	}

	user, err := s.svc.Click(id, req.Clicks)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// POST /users/{userID}/passive
func (s *Server) handlePassive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req clickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Clicks <= 0 {
		req.Clicks = 1
	}

	user, err := s.svc.Passive(id, req.Clicks)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type addBalanceRequest struct {
	Amount int64 `json:"amount"`
}

// POST /users/{userID}/add-balance
func (s *Server) handleAddBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req addBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	user, err := s.svc.AddBalance(id, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ─── Upgrade Handlers ───────────────────────────────────────────────────────

// GET /upgrades/user/{userID}
func (s *Server) handleUserUpgrades(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	states, err := s.svc.UpgradesFor(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if states == nil {
		states = []domain.UpgradeState{}
	}
	writeJSON(w, http.StatusOK, states)
}

type buyUpgradeRequest struct {
	UpgradeKey string `json:"upgrade_key"`
}

// POST /upgrades/user/{userID}/buy
func (s *Server) handleBuyUpgrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req buyUpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UpgradeKey == "" {
		writeError(w, http.StatusBadRequest, "upgrade_key is required")
		return
	}

	level, err := s.svc.BuyUpgrade(id, req.UpgradeKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"upgrade_key": req.UpgradeKey,
		"level":       level,
	})
}

// ─── Task Handlers ──────────────────────────────────────────────────────────

// GET /tasks/user/{userID}?type=
func (s *Server) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	tasks, err := s.svc.TasksFor(id, domain.TaskType(r.URL.Query().Get("type")))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tasks == nil {
		tasks = []domain.TaskProgress{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type claimTaskRequest struct {
	TaskID int64 `json:"task_id"`
}

// POST /tasks/user/{userID}/claim
func (s *Server) handleClaimTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req claimTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == 0 {
		writeError(w, http.StatusBadRequest, "task_id is required")
		return
	}

	reward, err := s.svc.ClaimTask(id, req.TaskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_claimed": true,
		"reward":     reward,
	})
}

// ─── Transfer Handlers ──────────────────────────────────────────────────────

type transferRequest struct {
	ReceiverTelegramID int64  `json:"receiver_telegram_id,omitempty"`
	ReceiverUsername   string `json:"receiver_username,omitempty"`
	Amount             int64  `json:"amount"`
}

// POST /transfers/{userID}
func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	transfer, err := s.svc.Transfer(id, req.ReceiverTelegramID, req.ReceiverUsername, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, transfer)
}

// GET /transfers/{userID}/history?limit=
func (s *Server) handleTransferHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	records, err := s.svc.TransferHistory(id, queryInt(r, "limit", 50))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if records == nil {
		records = []domain.TransferRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// ─── Shop Handlers ──────────────────────────────────────────────────────────

// GET /shop/items
func (s *Server) handleShopItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.ShopItems()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if items == nil {
		items = []domain.ShopItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

type purchaseRequest struct {
	ShopItemID int64 `json:"shop_item_id"`
}

// POST /shop/purchase/{userID} — direct debit, no payment proof.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ShopItemID == 0 {
		writeError(w, http.StatusBadRequest, "shop_item_id is required")
		return
	}

	purchase, err := s.svc.PurchaseItem(id, req.ShopItemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, purchase)
}

// ─── Stars Payment Handlers ─────────────────────────────────────────────────

type createInvoiceRequest struct {
	ShopItemID int64 `json:"shop_item_id"`
}

// POST /stars/create-invoice
func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ShopItemID == 0 {
		writeError(w, http.StatusBadRequest, "shop_item_id is required")
		return
	}
	inv, err := s.svc.CreateInvoice(req.ShopItemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

type starsPaymentRequest struct {
	UserID            int64  `json:"user_id"`
	ShopItemID        int64  `json:"shop_item_id"`
	TelegramPaymentID string `json:"telegram_payment_id"`
}

// POST /stars/payment
func (s *Server) handleStarsPayment(w http.ResponseWriter, r *http.Request) {
	var req starsPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 || req.ShopItemID == 0 {
		writeError(w, http.StatusBadRequest, "user_id and shop_item_id are required")
		return
	}

	user, crystals, err := s.svc.ConfirmPayment(req.UserID, req.ShopItemID, req.TelegramPaymentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"user_id":        user.ID,
		"crystals_added": crystals,
		"new_balance":    user.Balance,
	})
}

// ─── Chat Handlers ──────────────────────────────────────────────────────────

// GET /chat/messages?limit=&before_id=
func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.svc.ChatMessages(queryInt(r, "limit", 50), int64(queryInt(r, "before_id", 0)))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// POST /chat/messages/{userID}
func (s *Server) handleSendChatMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	msg, err := s.svc.SendChatMessage(id, req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// ─── Settings Handlers ──────────────────────────────────────────────────────

// GET /settings/click-value
func (s *Server) handleClickValue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int64{"click_value": s.svc.ClickValue()})
}
