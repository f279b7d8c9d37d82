// Package client is the HTTP client for the Tapcore API. It implements
// store.Backend so the optimistic store can reconcile against a live server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// APIError is a non-2xx response from the server, carrying the detail
// message the handlers emit.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Detail)
}

// Client talks to one Tapcore server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// do issues a JSON request and decodes the response into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(raw, &apiErr); err != nil || apiErr.Detail == "" {
			apiErr.Detail = string(raw)
		}
		return &APIError{Status: resp.StatusCode, Detail: apiErr.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ─── store.Backend ──────────────────────────────────────────────────────────

func (c *Client) Bootstrap(ctx context.Context, telegramID int64, profile domain.Profile) (domain.User, error) {
	req := struct {
		TelegramID int64  `json:"telegram_id"`
		Username   string `json:"username,omitempty"`
		FirstName  string `json:"first_name,omitempty"`
		LastName   string `json:"last_name,omitempty"`
		PhotoURL   string `json:"url_image,omitempty"`
	}{telegramID, profile.Username, profile.FirstName, profile.LastName, profile.PhotoURL}

	var user domain.User
	err := c.do(ctx, http.MethodPost, "/users", req, &user)
	return user, err
}

func (c *Client) User(ctx context.Context, userID int64) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d", userID), nil, &user)
	return user, err
}

func (c *Client) Click(ctx context.Context, userID int64, clicks int) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/click", userID),
		map[string]int{"clicks": clicks}, &user)
	return user, err
}

func (c *Client) PassiveTick(ctx context.Context, userID int64, ticks int) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/users/%d/passive", userID),
		map[string]int{"clicks": ticks}, &user)
	return user, err
}

func (c *Client) Upgrades(ctx context.Context, userID int64) ([]domain.UpgradeState, error) {
	var states []domain.UpgradeState
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/upgrades/user/%d", userID), nil, &states)
	return states, err
}

func (c *Client) BuyUpgrade(ctx context.Context, userID int64, key string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/upgrades/user/%d/buy", userID),
		map[string]string{"upgrade_key": key}, nil)
}

func (c *Client) Tasks(ctx context.Context, userID int64) ([]domain.TaskProgress, error) {
	var tasks []domain.TaskProgress
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/user/%d", userID), nil, &tasks)
	return tasks, err
}

func (c *Client) ClaimTask(ctx context.Context, userID, taskID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/user/%d/claim", userID),
		map[string]int64{"task_id": taskID}, nil)
}

func (c *Client) Transfer(ctx context.Context, senderID int64, receiverUsername string, amount int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/transfers/%d", senderID),
		map[string]interface{}{"receiver_username": receiverUsername, "amount": amount}, nil)
}

func (c *Client) Purchase(ctx context.Context, userID, itemID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/shop/purchase/%d", userID),
		map[string]int64{"shop_item_id": itemID}, nil)
}

func (c *Client) ConfirmPayment(ctx context.Context, userID, itemID int64, paymentID string) error {
	return c.do(ctx, http.MethodPost, "/stars/payment", map[string]interface{}{
		"user_id":             userID,
		"shop_item_id":        itemID,
		"telegram_payment_id": paymentID,
	}, nil)
}

func (c *Client) ClickValue(ctx context.Context) (int64, error) {
	var body map[string]int64
	if err := c.do(ctx, http.MethodGet, "/settings/click-value", nil, &body); err != nil {
		return 0, err
	}
	return body["click_value"], nil
}

// ─── Extra Surface ──────────────────────────────────────────────────────────
//
// Not part of store.Backend; used by the interactive CLI session.

func (c *Client) UserByTelegram(ctx context.Context, telegramID int64) (domain.User, error) {
	var user domain.User
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/by-telegram/%d", telegramID), nil, &user)
	return user, err
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/leaderboard?limit=%d", limit), nil, &entries)
	return entries, err
}

func (c *Client) TransferHistory(ctx context.Context, userID int64, limit int) ([]domain.TransferRecord, error) {
	var records []domain.TransferRecord
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/transfers/%d/history?limit=%d", userID, limit), nil, &records)
	return records, err
}

func (c *Client) ShopItems(ctx context.Context) ([]domain.ShopItem, error) {
	var items []domain.ShopItem
	err := c.do(ctx, http.MethodGet, "/shop/items", nil, &items)
	return items, err
}

func (c *Client) ChatMessages(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/messages?limit=%d", limit), nil, &messages)
	return messages, err
}

func (c *Client) SendChatMessage(ctx context.Context, userID int64, text string) (domain.ChatMessage, error) {
	var msg domain.ChatMessage
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/chat/messages/%d", userID),
		map[string]string{"text": text}, &msg)
	return msg, err
}
