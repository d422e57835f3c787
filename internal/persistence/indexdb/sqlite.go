// Package indexdb keeps a queryable SQLite read model of the turn journal
// and event stream. The JSONL journal remains the source of truth.
package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"oraclecraft.ai/internal/sim/game"
	"oraclecraft.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTurnTotal  atomic.Uint64
	dropEventTotal atomic.Uint64
}

var (
	_ game.TurnRecorder = (*SQLiteIndex)(nil)
	_ game.EventSink    = (*SQLiteIndex)(nil)
)

type reqKind int

const (
	reqTurn reqKind = iota + 1
	reqEvent
)

type req struct {
	kind reqKind

	turn  game.TurnLogEntry
	event game.Event
}

// Stats reports queue pressure; drops mean the writer fell behind.
type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropTurnTotal  uint64
	DropEventTotal uint64
}

const defaultQueueSize = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, defaultQueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			turn INTEGER PRIMARY KEY,
			intent_kind TEXT NOT NULL,
			intent_json TEXT NOT NULL,
			from_cache INTEGER NOT NULL,
			success INTEGER,
			digest TEXT NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_turns_kind ON turns(intent_kind, turn);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			turn INTEGER NOT NULL,
			type TEXT NOT NULL,
			category TEXT NOT NULL,
			text TEXT NOT NULL,
			agent_id TEXT,
			recipe_id TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_events_agent ON events(agent_id, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropTurnTotal:  s.dropTurnTotal.Load(),
		DropEventTotal: s.dropEventTotal.Load(),
	}
}

// RecordTurn enqueues a journal entry. It never blocks the engine.
func (s *SQLiteIndex) RecordTurn(entry game.TurnLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTurn, turn: entry}:
	default:
		s.dropTurnTotal.Add(1)
	}
	return nil
}

// OnEvent indexes every published event, including ones from intents
// that did not consume a turn.
func (s *SQLiteIndex) OnEvent(ev game.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqEvent, event: ev}:
	default:
		s.dropEventTotal.Add(1)
	}
}

// UpsertTuning stores the effective tuning under meta so a database can be
// matched with the settings that produced it.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.Exec(`INSERT OR REPLACE INTO meta(key,value,updated_at) VALUES(?,?,?)`, "tuning", string(b), now)
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(turn,intent_kind,intent_json,from_cache,success,digest,raw_json) VALUES(?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO events(seq,turn,type,category,text,agent_id,recipe_id) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertTurn != nil {
			_ = insertTurn.Close()
		}
		if insertEvent != nil {
			_ = insertEvent.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		// Commit when the queue drains too, so readers see a quiet game's rows.
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTurn:
			if insertTurn == nil {
				break
			}
			e := r.turn
			raw, _ := json.Marshal(e)
			in, _ := json.Marshal(e.Intent)
			var success any
			if e.Judgment != nil {
				success = boolInt(e.Judgment.Success)
			}
			if _, err := tx.Stmt(insertTurn).Exec(
				int64(e.Turn),
				string(e.Intent.Kind),
				string(in),
				boolInt(e.FromCache),
				success,
				e.Digest,
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqEvent:
			if insertEvent == nil {
				break
			}
			ev := r.event
			if _, err := tx.Stmt(insertEvent).Exec(
				int64(ev.Seq),
				int64(ev.Turn),
				string(ev.Type),
				string(ev.Category),
				ev.Text,
				nullString(ev.AgentID),
				nullString(ev.RecipeID),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		flushIfNeeded()
	}

	commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
