package arena

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/state" || r.Method != http.MethodGet {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(State{
			Game: &Game{Status: "running", CurrentRound: 3, StartingCash: 100000},
			Bots: []Bot{{ID: "gary", Cash: 80000, TotalValue: 101000}},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	state, err := c.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Game.CurrentRound != 3 || len(state.Bots) != 1 || state.Bots[0].ID != "gary" {
		t.Errorf("state = %+v", state)
	}
}

func TestClientSubmitOrdersSendsToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/api/bot/gary/orders" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req OrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Side != "BUY" || req.Symbol != "NVDA" || req.Shares != 10 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"outcomes": []Outcome{{Accepted: true, Trade: &Trade{Symbol: "NVDA", Price: 140}}},
		})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "secret")
	outcomes, err := c.SubmitOrders(context.Background(), "gary", OrderRequest{Side: "BUY", Symbol: "NVDA", Shares: 10})
	if err != nil {
		t.Fatalf("SubmitOrders: %v", err)
	}
	if len(outcomes) != 1 || !outcomes[0].Accepted || outcomes[0].Trade.Price != 140 {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestClientAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing or invalid token"})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "")
	err := c.SetStatus(context.Background(), "paused")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "missing or invalid token" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClientUpdatePricesNoContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/prices" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Prices map[string]float64 `json:"prices"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Prices["SPY"] != 500.5 {
			t.Errorf("prices = %v", body.Prices)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "secret")
	if err := c.UpdatePrices(context.Background(), map[string]float64{"SPY": 500.5}); err != nil {
		t.Fatalf("UpdatePrices: %v", err)
	}
}

func TestClientIncrementRound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]int{"round": 7})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "secret")
	round, err := c.IncrementRound(context.Background())
	if err != nil {
		t.Fatalf("IncrementRound: %v", err)
	}
	if round != 7 {
		t.Errorf("round = %d, want 7", round)
	}
}
