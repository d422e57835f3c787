package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"oraclecraft.ai/internal/sim/game"
)

const turnsPrefix = "turns"

// TurnLogger journals one JSONL entry per consumed turn (compressed).
type TurnLogger struct{ w *JSONLZstdWriter }

var _ game.TurnRecorder = (*TurnLogger)(nil)

func NewTurnLogger(dataDir string) *TurnLogger {
	return &TurnLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "turns"), turnsPrefix)}
}

func (l *TurnLogger) RecordTurn(e game.TurnLogEntry) error { return l.w.Write(e) }
func (l *TurnLogger) Close() error                        { return l.w.Close() }

// JournalFiles lists the turn journal files under dataDir in write order.
func JournalFiles(dataDir string) ([]string, error) {
	dir := filepath.Join(dataDir, "turns")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, turnsPrefix+"-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	// Hour stamps sort lexically.
	sort.Strings(out)
	return out, nil
}

// ReadTurnFile decodes every entry in one journal file.
func ReadTurnFile(path string) ([]game.TurnLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []game.TurnLogEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var e game.TurnLogEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return out, fmt.Errorf("%s:%d: %w", filepath.Base(path), line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// ReadTurns reads the whole journal under dataDir in turn order.
func ReadTurns(dataDir string) ([]game.TurnLogEntry, error) {
	files, err := JournalFiles(dataDir)
	if err != nil {
		return nil, err
	}
	var out []game.TurnLogEntry
	for _, p := range files {
		es, err := ReadTurnFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, es...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Turn < out[j].Turn })
	return out, nil
}
