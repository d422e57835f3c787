// Command bot connects to a game server and plays a short scripted session:
// explore, craft from the starting inventory, then run the discovered recipe.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"oraclecraft.ai/internal/logging"
	"oraclecraft.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "client name")
		location = flag.String("location", "the old forest", "place to explore")
		action   = flag.String("action", "combine them carefully", "craft action")
		timeout  = flag.Duration("timeout", 5*time.Minute, "give up after this long")
	)
	flag.Parse()

	logger, _, err := logging.New(os.Stdout, logging.Options{Component: "bot"})
	if err != nil {
		slog.Error("init logging", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancel2 := context.WithTimeout(ctx, *timeout)
	defer cancel2()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, *url, nil)
	if err != nil {
		logger.Error("dial", "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	b := &bot{conn: conn, log: logger}
	if err := b.play(*name, *location, *action); err != nil {
		logger.Error("play", "error", err)
		os.Exit(1)
	}
}

type bot struct {
	conn *websocket.Conn
	log  *slog.Logger

	nextID int
	snap   protocol.SnapshotMsg
	acks   []protocol.AckMsg

	// unknownCodes counts ACKs whose code this build does not recognize.
	unknownCodes int
}

func (b *bot) play(name, location, action string) error {
	if err := b.conn.WriteJSON(protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      name,
	}); err != nil {
		return fmt.Errorf("send HELLO: %w", err)
	}
	// WELCOME is followed by the first SNAPSHOT.
	if err := b.readUntil(func(typ string) bool { return typ == protocol.TypeSnapshot }); err != nil {
		return err
	}

	if _, err := b.send(protocol.IntentMsg{Intent: protocol.IntentExplore, Location: location}); err != nil {
		return err
	}

	var materials []string
	for _, st := range b.snap.Inventory {
		if len(materials) == 2 {
			break
		}
		materials = append(materials, st.Item)
	}
	if len(materials) == 0 {
		b.log.Info("inventory empty; nothing to craft")
		return nil
	}
	ack, err := b.send(protocol.IntentMsg{Intent: protocol.IntentCraft, Materials: materials, Action: action})
	if err != nil {
		return err
	}
	if ack.OK && ack.RecipeID != "" {
		if _, err := b.send(protocol.IntentMsg{Intent: protocol.IntentExecute, RecipeID: ack.RecipeID}); err != nil {
			return err
		}
	}
	b.log.Info("done", "turn", b.snap.Turn, "recipes", len(b.snap.Recipes), "agents", len(b.snap.Agents))
	return nil
}

// send issues an intent and waits for its ACK. A rejected intent is logged,
// not returned as an error.
func (b *bot) send(im protocol.IntentMsg) (protocol.AckMsg, error) {
	b.nextID++
	im.Type = protocol.TypeIntent
	im.ProtocolVersion = protocol.Version
	im.IntentID = fmt.Sprintf("I_%d", b.nextID)
	if err := b.conn.WriteJSON(im); err != nil {
		return protocol.AckMsg{}, fmt.Errorf("send %s: %w", im.Intent, err)
	}
	// The server follows each ACK with a fresh SNAPSHOT unless the intent
	// was busy or never decoded.
	var ack protocol.AckMsg
	found := false
	err := b.readUntil(func(typ string) bool {
		if !found {
			for _, a := range b.acks {
				if a.IntentID == im.IntentID {
					ack, found = a, true
				}
			}
			return found && (ack.Code == protocol.ErrBusy || ack.Code == protocol.ErrProtoBadRequest)
		}
		return typ == protocol.TypeSnapshot
	})
	if err != nil {
		return protocol.AckMsg{}, err
	}
	if !ack.OK {
		b.log.Warn("intent rejected", "intent", im.Intent, "code", ack.Code, "retryable", protocol.Retryable(ack.Code), "message", ack.Message)
	} else {
		b.log.Info("intent done", "intent", im.Intent, "status", ack.Status, "turn", ack.Turn, "recipe", ack.RecipeID, "from_cache", ack.FromCache)
	}
	return ack, nil
}

func (b *bot) readUntil(done func(typ string) bool) error {
	for {
		_, msg, err := b.conn.ReadMessage()
		if err != nil {
			return err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err == nil {
				b.log.Info("WELCOME", "session", w.SessionID, "turn", w.Turn)
			}
		case protocol.TypeEvent:
			var ev protocol.EventMsg
			if err := json.Unmarshal(msg, &ev); err == nil {
				b.log.Info(ev.Event.Text, "seq", ev.Event.Seq, "kind", ev.Event.Kind, "category", ev.Event.Category)
			}
		case protocol.TypeSnapshot:
			var s protocol.SnapshotMsg
			if err := json.Unmarshal(msg, &s); err == nil {
				b.snap = s
			}
		case protocol.TypeAck:
			var a protocol.AckMsg
			if err := json.Unmarshal(msg, &a); err == nil {
				b.recordAck(a)
			}
		default:
			return errors.New("unexpected message type " + base.Type)
		}
		if done(base.Type) {
			return nil
		}
	}
}

func (b *bot) recordAck(a protocol.AckMsg) {
	if !protocol.IsKnownCode(a.Code) {
		b.unknownCodes++
		b.log.Warn("unknown ack code", "intent_id", a.IntentID, "code", a.Code)
	}
	b.acks = append(b.acks, a)
}
