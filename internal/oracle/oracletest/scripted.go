// Package oracletest provides a scripted Oracle for tests and replays.
package oracletest

import (
	"context"
	"errors"
	"sync"

	"oraclecraft.ai/internal/oracle"
)

var ErrExhausted = errors.New("oracletest: script exhausted")

type Call struct {
	SystemInstruction string
	UserQuery         string
	Schema            string
}

type step struct {
	j   oracle.Judgment
	err error
}

// Scripted answers requests in order from a queue of judgments and errors.
type Scripted struct {
	mu    sync.Mutex
	steps []step
	calls []Call

	// Block, when set, is waited on before each answer.
	Block chan struct{}
}

var _ oracle.Oracle = (*Scripted)(nil)

func New(js ...oracle.Judgment) *Scripted {
	s := &Scripted{}
	for _, j := range js {
		s.Push(j)
	}
	return s
}

func (s *Scripted) Push(j oracle.Judgment) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{j: j.Clone()})
	return s
}

func (s *Scripted) Fail(err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{err: err})
	return s
}

func (s *Scripted) RequestJudgment(ctx context.Context, systemInstruction, userQuery string, schema *oracle.Schema) (oracle.Judgment, error) {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return oracle.Judgment{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	name := ""
	if schema != nil {
		name = schema.Name
	}
	s.calls = append(s.calls, Call{SystemInstruction: systemInstruction, UserQuery: userQuery, Schema: name})
	if len(s.steps) == 0 {
		return oracle.Judgment{}, ErrExhausted
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	if st.err != nil {
		return oracle.Judgment{}, st.err
	}
	return st.j.Clone(), nil
}

func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

func (s *Scripted) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
