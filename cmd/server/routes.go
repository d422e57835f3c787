package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/persistence/indexdb"
	"oraclecraft.ai/internal/sim/game"
	"oraclecraft.ai/internal/sim/tuning"
	"oraclecraft.ai/internal/transport/proxy"
	"oraclecraft.ai/internal/transport/ws"
)

type routeDeps struct {
	game     *game.Game
	provider oracle.Backend // nil disables the proxy route
	tune     tuning.Tuning
	index    *indexdb.SQLiteIndex
	logger   *slog.Logger
}

func newMux(d routeDeps) *http.ServeMux {
	mux := http.NewServeMux()
	wsSrv := ws.NewServer(d.game, d.logger.With("component", "ws"))

	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			Snapshot game.Snapshot `json:"snapshot"`
			Clients  int           `json:"clients"`
			Index    indexdb.Stats `json:"index"`
		}{
			Snapshot: d.game.Snapshot(),
			Clients:  wsSrv.Clients(),
			Index:    d.index.Stats(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	if d.provider != nil {
		p := proxy.NewServer(d.provider, proxy.Config{
			RatePerMinute: d.tune.Proxy.RatePerMinute,
			Burst:         d.tune.Proxy.Burst,
			MaxBodyBytes:  d.tune.Proxy.MaxBodyBytes,
		}, d.logger.With("component", "proxy"))
		mux.HandleFunc(proxy.Path, p.Handler())
	}
	return mux
}
