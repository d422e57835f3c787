package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/oracle/oracletest"
	"oraclecraft.ai/internal/sim/game"
	"oraclecraft.ai/internal/sim/tuning"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestMux_HealthAndState(t *testing.T) {
	g := game.New(game.Config{StarterItems: map[string]int{"wood": 2}}, oracletest.New(), nil)
	srv := httptest.NewServer(newMux(routeDeps{game: g, tune: tuning.Defaults(), logger: testLogger()}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("healthz: %v %v", resp, err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/v1/state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Snapshot game.Snapshot `json:"snapshot"`
		Clients  int           `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Snapshot.Inventory) != 1 || body.Snapshot.Inventory[0].Item != "wood" {
		t.Fatalf("snapshot=%+v", body.Snapshot)
	}
}

func TestMux_ProxyRouteOnlyWithProvider(t *testing.T) {
	g := game.New(game.Config{}, oracletest.New(), nil)

	without := httptest.NewServer(newMux(routeDeps{game: g, tune: tuning.Defaults(), logger: testLogger()}))
	defer without.Close()
	resp, err := http.Post(without.URL+"/api/gemini", "application/json", strings.NewReader(`{"userQuery":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status=%d want 404", resp.StatusCode)
	}

	provider := oracle.BackendFunc(func(ctx context.Context, req oracle.Request) (string, error) {
		return `{"success":false,"description":"no"}`, nil
	})
	with := httptest.NewServer(newMux(routeDeps{game: g, provider: provider, tune: tuning.Defaults(), logger: testLogger()}))
	defer with.Close()
	resp, err = http.Post(with.URL+"/api/gemini", "application/json", strings.NewReader(`{"userQuery":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want 200", resp.StatusCode)
	}
}
