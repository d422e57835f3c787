// Package proxy serves the oracle boundary over HTTP: it turns
// {systemInstruction, userQuery, schema} into one provider call and answers
// {message} or {error, details}.
package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"oraclecraft.ai/internal/oracle"
	"oraclecraft.ai/internal/oracle/proxyclient"
)

const Path = "/api/gemini"

type Config struct {
	// RatePerMinute is the sustained per-client ceiling; 0 disables limiting.
	RatePerMinute int
	Burst         int
	MaxBodyBytes  int64
}

type Server struct {
	backend oracle.Backend
	cfg     Config
	log     *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	now      func() time.Time
}

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

const (
	limiterIdle  = 10 * time.Minute
	limiterSweep = 1024
)

func NewServer(b oracle.Backend, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Server{
		backend:  b,
		cfg:      cfg,
		log:      logger,
		limiters: map[string]*clientLimiter{},
		now:      time.Now,
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		log := s.log.With("request_id", reqID)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, proxyclient.Reply{Error: "method not allowed"})
			return
		}
		if !s.allow(clientKey(r.RemoteAddr)) {
			writeJSON(w, http.StatusTooManyRequests, proxyclient.Reply{Error: "rate limit exceeded"})
			return
		}

		var req oracle.Request
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, proxyclient.Reply{Error: "invalid request body", Details: err.Error()})
			return
		}
		if strings.TrimSpace(req.UserQuery) == "" {
			writeJSON(w, http.StatusBadRequest, proxyclient.Reply{Error: "userQuery is required"})
			return
		}

		text, err := s.backend.Generate(r.Context(), req)
		if err != nil {
			log.Error("provider call failed", "error", err)
			code := http.StatusBadGateway
			if errors.Is(err, oracle.ErrEmptyReply) {
				code = http.StatusInternalServerError
			}
			writeJSON(w, code, proxyclient.Reply{Error: "error while talking to the provider", Details: err.Error()})
			return
		}
		log.Debug("provider reply", "bytes", len(text))
		writeJSON(w, http.StatusOK, proxyclient.Reply{Message: text})
	}
}

func (s *Server) allow(key string) bool {
	if s.cfg.RatePerMinute <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if len(s.limiters) >= limiterSweep {
		for k, cl := range s.limiters {
			if now.Sub(cl.lastSeen) > limiterIdle {
				delete(s.limiters, k)
			}
		}
	}
	cl := s.limiters[key]
	if cl == nil {
		every := rate.Every(time.Minute / time.Duration(s.cfg.RatePerMinute))
		cl = &clientLimiter{lim: rate.NewLimiter(every, s.cfg.Burst)}
		s.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.lim.AllowN(now, 1)
}

func clientKey(remoteAddr string) string {
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return h
	}
	return remoteAddr
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
