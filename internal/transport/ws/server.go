package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"oraclecraft.ai/internal/protocol"
	"oraclecraft.ai/internal/sim/game"
)

const outQueue = 64

// Server is the presentation boundary: it streams events and snapshots of one
// game to every connected client and feeds their intents back in.
type Server struct {
	game *game.Game
	log  *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
}

func NewServer(g *game.Game, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		game:    g,
		log:     logger,
		clients: map[string]*client{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	g.AddSink(game.EventSinkFunc(s.broadcastEvent))
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c, since := s.handshake(conn)
		if c == nil {
			return
		}
		log := s.log.With("session", c.id)
		log.Info("client connected", "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		s.register(c)
		defer s.unregister(c)
		c.activate(toProtoEvents(s.game.Events(since)))
		c.sendJSON(snapshotMsg(s.game.Snapshot()))

		// Intents outlive the connection that sent them; a turn in
		// progress must not be aborted by a disconnect.
		intentCtx := context.WithoutCancel(r.Context())
		var inflight sync.WaitGroup
		defer inflight.Wait()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeIntent {
				continue
			}
			im, code, err := decodeIntent(msg)
			if err != nil {
				c.sendJSON(protocol.AckMsg{
					Type:            protocol.TypeAck,
					ProtocolVersion: protocol.Version,
					IntentID:        im.IntentID,
					Code:            code,
					Message:         err.Error(),
				})
				continue
			}
			// Dispatch concurrently so a second intent during an oracle
			// round-trip is answered busy instead of queueing.
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				s.handleIntent(intentCtx, c, im)
			}()
		}
		log.Info("client disconnected")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*client, uint64) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, 0
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, 0
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, 0
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, 0
	}

	c := newClient(uuid.NewString())
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       c.id,
		Turn:            s.game.Turn(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return nil, 0
	}
	return c, hello.SinceSeq
}

func (s *Server) handleIntent(ctx context.Context, c *client, im protocol.IntentMsg) {
	out, err := s.game.Apply(ctx, toGameIntent(im))
	ack := protocol.AckMsg{
		Type:            protocol.TypeAck,
		ProtocolVersion: protocol.Version,
		IntentID:        im.IntentID,
		OK:              err == nil,
		Status:          string(out.Status),
		TurnConsumed:    out.TurnConsumed,
		Turn:            out.Turn,
		RecipeID:        out.RecipeID,
		FromCache:       out.FromCache,
	}
	if err != nil {
		ack.Code = ErrorCode(err)
		ack.Message = err.Error()
		if ack.Code == protocol.ErrInternal {
			s.log.Error("intent failed", "session", c.id, "intent", im.Intent, "error", err)
		}
	}
	c.sendJSON(ack)
	if ack.Code != protocol.ErrBusy {
		s.broadcastSnapshot()
	}
}

func (s *Server) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.id)
}

func (s *Server) each(fn func(c *client)) {
	s.mu.Lock()
	cs := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		cs = append(cs, c)
	}
	s.mu.Unlock()
	for _, c := range cs {
		fn(c)
	}
}

// broadcastEvent runs under the game lock; it only queues bytes.
func (s *Server) broadcastEvent(ev game.Event) {
	pe := toProtoEvent(ev)
	s.each(func(c *client) { c.deliver(pe) })
}

func (s *Server) broadcastSnapshot() {
	b, err := json.Marshal(snapshotMsg(s.game.Snapshot()))
	if err != nil {
		s.log.Error("marshal snapshot", "error", err)
		return
	}
	s.each(func(c *client) { sendLatest(c.out, b) })
}

// Clients reports the number of connected sessions.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
