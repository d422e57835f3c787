package oracle

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the retries around one judgment request.
type Policy struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// DefaultPolicy is one try plus three retries, waiting 1s, 2s, 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  4,
		InitialDelay: time.Second,
		Multiplier:   2,
		MaxDelay:     8 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialDelay < 0 {
		p.InitialDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := float64(p.InitialDelay)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if time.Duration(d) >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return time.Duration(d)
}

// policyBackOff feeds Delay to the retry loop so the schedule has one source.
type policyBackOff struct {
	p Policy
	n int
}

func (b *policyBackOff) NextBackOff() time.Duration {
	b.n++
	return b.p.Delay(b.n)
}

func (b *policyBackOff) Reset() { b.n = 0 }

func (p Policy) backOff() backoff.BackOff {
	return &policyBackOff{p: p}
}
