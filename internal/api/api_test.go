package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tapcore-app/tapcore/internal/app/economy"
	"github.com/tapcore-app/tapcore/internal/domain"
	"github.com/tapcore-app/tapcore/internal/infra/sqlite"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := economy.New(db)
	if err := svc.Seed(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	srv := NewServer(svc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, db
}

func doJSON(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func createUser(t *testing.T, ts *httptest.Server, telegramID int64, username string) domain.User {
	t.Helper()
	resp := doJSON(t, http.MethodPost, ts.URL+"/users", map[string]interface{}{
		"telegram_id": telegramID,
		"username":    username,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user status = %d", resp.StatusCode)
	}
	var u domain.User
	decode(t, resp, &u)
	return u
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCreateAndFetchUser(t *testing.T) {
	ts, _ := newTestServer(t)

	created := createUser(t, ts, 42, "alice")
	if created.TelegramID != 42 || created.Energy != 100 {
		t.Errorf("created = %+v", created)
	}

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/users/%d", ts.URL, created.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var fetched domain.User
	decode(t, resp, &fetched)
	if fetched.ID != created.ID || fetched.Username != "alice" {
		t.Errorf("fetched = %+v", fetched)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/users/by-telegram/42", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("by-telegram status = %d", resp.StatusCode)
	}
	decode(t, resp, &fetched)
	if fetched.ID != created.ID {
		t.Errorf("by-telegram returned user %d, want %d", fetched.ID, created.ID)
	}
}

func TestUpdateProfileEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	created := createUser(t, ts, 7, "bob")

	resp := doJSON(t, http.MethodPatch, fmt.Sprintf("%s/users/%d", ts.URL, created.ID), map[string]interface{}{
		"username":  "bobby",
		"url_image": "https://cdn.example/bob.png",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	var updated domain.User
	decode(t, resp, &updated)
	if updated.Username != "bobby" || updated.PhotoURL != "https://cdn.example/bob.png" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.Balance != created.Balance {
		t.Errorf("profile update changed balance: %d -> %d", created.Balance, updated.Balance)
	}

	resp = doJSON(t, http.MethodPatch, ts.URL+"/users/99999", map[string]interface{}{"username": "ghost"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("patch unknown user status = %d, want 404", resp.StatusCode)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/users/9999", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["detail"] == "" {
		t.Error("error response missing detail field")
	}
}

func TestClickEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	user := createUser(t, ts, 1, "alice")

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/users/%d/click", ts.URL, user.ID), map[string]int{"clicks": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("click status = %d", resp.StatusCode)
	}
	var after domain.User
	decode(t, resp, &after)
	if after.Balance != 3 {
		t.Errorf("balance = %d, want 3", after.Balance)
	}
	if after.Energy > 97 {
		t.Errorf("energy = %d, want <= 97", after.Energy)
	}
}

func TestClickEndpoint_NotEnoughEnergy(t *testing.T) {
	ts, db := newTestServer(t)
	user := createUser(t, ts, 1, "alice")
	db.SetEnergy(user.ID, 1, time.Now().UTC())

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/users/%d/click", ts.URL, user.ID), map[string]int{"clicks": 5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestClickEndpoint_RateLimited(t *testing.T) {
	ts, db := newTestServer(t)

	srv := NewServer(economy.New(db))
	srv.SetClickRateLimit(1, 2) // 1 click/sec, burst 2
	limited := httptest.NewServer(srv.Handler())
	defer limited.Close()

	user := createUser(t, ts, 1, "alice")

	url := fmt.Sprintf("%s/users/%d/click", limited.URL, user.ID)
	resp := doJSON(t, http.MethodPost, url, map[string]int{"clicks": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first click status = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, url, map[string]int{"clicks": 2})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestBuyUpgradeEndpoint(t *testing.T) {
	ts, db := newTestServer(t)
	user := createUser(t, ts, 1, "alice")
	db.AddBalance(user.ID, 100)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/upgrades/user/%d/buy", ts.URL, user.ID),
		map[string]string{"upgrade_key": domain.UpgradeClick})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buy status = %d", resp.StatusCode)
	}
	var body struct {
		UpgradeKey string `json:"upgrade_key"`
		Level      int    `json:"level"`
	}
	decode(t, resp, &body)
	if body.Level != 1 {
		t.Errorf("level = %d, want 1", body.Level)
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/upgrades/user/%d", ts.URL, user.ID), nil)
	var states []domain.UpgradeState
	decode(t, resp, &states)
	found := false
	for _, s := range states {
		if s.Key == domain.UpgradeClick && s.Level == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("click upgrade level 1 not in states: %+v", states)
	}
}

func TestBuyUpgradeEndpoint_InsufficientBalance(t *testing.T) {
	ts, _ := newTestServer(t)
	user := createUser(t, ts, 1, "alice")

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/upgrades/user/%d/buy", ts.URL, user.ID),
		map[string]string{"upgrade_key": domain.UpgradeClick})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTransferEndpoint(t *testing.T) {
	ts, db := newTestServer(t)
	sender := createUser(t, ts, 1, "alice")
	receiver := createUser(t, ts, 2, "bob")
	db.AddBalance(sender.ID, 100)

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/transfers/%d", ts.URL, sender.ID),
		map[string]interface{}{"receiver_username": "bob", "amount": 40})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("transfer status = %d", resp.StatusCode)
	}
	var tr domain.Transfer
	decode(t, resp, &tr)
	if tr.ReceiverID != receiver.ID || tr.Amount != 40 {
		t.Errorf("transfer = %+v", tr)
	}

	resp = doJSON(t, http.MethodGet, fmt.Sprintf("%s/transfers/%d/history", ts.URL, sender.ID), nil)
	var history []domain.TransferRecord
	decode(t, resp, &history)
	if len(history) != 1 || history[0].Direction != "sent" {
		t.Errorf("history = %+v", history)
	}
}

func TestTransferEndpoint_InvalidAmount(t *testing.T) {
	ts, _ := newTestServer(t)
	sender := createUser(t, ts, 1, "alice")
	createUser(t, ts, 2, "bob")

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/transfers/%d", ts.URL, sender.ID),
		map[string]interface{}{"receiver_username": "bob", "amount": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestTasksEndpoint(t *testing.T) {
	ts, db := newTestServer(t)
	user := createUser(t, ts, 1, "alice")
	db.InsertTask(domain.Task{Type: domain.TaskDaily, Action: domain.ActionClick, TargetValue: 2, Reward: 100, Title: "Clicker", Active: true})

	doJSON(t, http.MethodPost, fmt.Sprintf("%s/users/%d/click", ts.URL, user.ID), map[string]int{"clicks": 2})

	resp := doJSON(t, http.MethodGet, fmt.Sprintf("%s/tasks/user/%d", ts.URL, user.ID), nil)
	var tasks []domain.TaskProgress
	decode(t, resp, &tasks)
	if len(tasks) != 1 || !tasks[0].IsCompleted {
		t.Fatalf("tasks = %+v, want one completed", tasks)
	}

	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/tasks/user/%d/claim", ts.URL, user.ID),
		map[string]int64{"task_id": tasks[0].TaskID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim status = %d", resp.StatusCode)
	}

	// Second claim hits the latch.
	resp = doJSON(t, http.MethodPost, fmt.Sprintf("%s/tasks/user/%d/claim", ts.URL, user.ID),
		map[string]int64{"task_id": tasks[0].TaskID})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("double claim status = %d, want 400", resp.StatusCode)
	}
}

func TestShopEndpoints(t *testing.T) {
	ts, db := newTestServer(t)
	user := createUser(t, ts, 1, "alice")
	itemID, _ := db.InsertShopItem(domain.ShopItem{Crystals: 500, Stars: 25, Active: true})

	resp := doJSON(t, http.MethodGet, ts.URL+"/shop/items", nil)
	var items []domain.ShopItem
	decode(t, resp, &items)
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/stars/create-invoice",
		map[string]int64{"shop_item_id": itemID})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("invoice status = %d", resp.StatusCode)
	}
	var inv domain.Invoice
	decode(t, resp, &inv)
	if inv.ID == "" || inv.Stars != 25 {
		t.Errorf("invoice = %+v", inv)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/stars/payment", map[string]interface{}{
		"user_id":             user.ID,
		"shop_item_id":        itemID,
		"telegram_payment_id": "tg-abc",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("payment status = %d", resp.StatusCode)
	}
	var payment struct {
		Success    bool  `json:"success"`
		NewBalance int64 `json:"new_balance"`
	}
	decode(t, resp, &payment)
	if !payment.Success || payment.NewBalance != 500 {
		t.Errorf("payment = %+v", payment)
	}
}

func TestChatEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	user := createUser(t, ts, 1, "alice")

	resp := doJSON(t, http.MethodPost, fmt.Sprintf("%s/chat/messages/%d", ts.URL, user.ID),
		map[string]string{"text": "hello"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, ts.URL+"/chat/messages", nil)
	var messages []domain.ChatMessage
	decode(t, resp, &messages)
	if len(messages) != 1 || messages[0].Text != "hello" {
		t.Errorf("messages = %+v", messages)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts, db := newTestServer(t)
	alice := createUser(t, ts, 1, "alice")
	bob := createUser(t, ts, 2, "bob")
	db.AddBalance(alice.ID, 10)
	db.AddBalance(bob.ID, 30)

	resp := doJSON(t, http.MethodGet, ts.URL+"/users/leaderboard", nil)
	var entries []domain.LeaderboardEntry
	decode(t, resp, &entries)
	if len(entries) != 2 || entries[0].Username != "bob" {
		t.Errorf("leaderboard = %+v", entries)
	}
}

func TestClickValueEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, ts.URL+"/settings/click-value", nil)
	var body map[string]int64
	decode(t, resp, &body)
	if body["click_value"] != 1 {
		t.Errorf("click_value = %d, want 1", body["click_value"])
	}
}
