package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"oraclecraft.ai/internal/oracle"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	StarterItems map[string]int `yaml:"starter_items"`
	LogRetention int            `yaml:"log_retention"`
	Welcome      []string       `yaml:"welcome"`

	Oracle OracleTuning `yaml:"oracle"`
	Proxy  ProxyTuning  `yaml:"proxy"`
}

type OracleTuning struct {
	Model string        `yaml:"model"`
	Retry oracle.Policy `yaml:"retry"`
	// Timeout bounds a single attempt; 0 leaves it to the caller's context.
	Timeout time.Duration `yaml:"timeout"`
}

// ProxyTuning is the per-client ceiling enforced by the oracle proxy.
type ProxyTuning struct {
	RatePerMinute int   `yaml:"rate_per_minute"`
	Burst         int   `yaml:"burst"`
	MaxBodyBytes  int64 `yaml:"max_body_bytes"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		StarterItems: map[string]int{
			"wooden stick":    10,
			"sharp stone":     5,
			"mysterious core": 1,
			"broken machine":  1,
		},
		LogRetention: 500,
		Oracle: OracleTuning{
			Model:   "gemini-2.5-flash",
			Retry:   oracle.DefaultPolicy(),
			Timeout: 60 * time.Second,
		},
		Proxy: ProxyTuning{
			RatePerMinute: 30,
			Burst:         5,
			MaxBodyBytes:  64 << 10,
		},
	}
}

// Load reads path over Defaults, so a file only needs the keys it changes.
// A starter_items block replaces the default inventory rather than merging.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	t.StarterItems = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Defaults(), fmt.Errorf("tuning.yaml: %w", err)
	}
	if t.StarterItems == nil {
		t.StarterItems = Defaults().StarterItems
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	for item, n := range t.StarterItems {
		if item == "" {
			return fmt.Errorf("starter_items: empty item name")
		}
		if n <= 0 {
			return fmt.Errorf("starter_items[%s]: quantity must be positive, got %d", item, n)
		}
	}
	if t.LogRetention < 0 {
		return fmt.Errorf("log_retention: must be >= 0")
	}
	if t.Oracle.Retry.MaxAttempts < 0 {
		return fmt.Errorf("oracle.retry.max_attempts: must be >= 0")
	}
	if t.Proxy.RatePerMinute < 0 || t.Proxy.Burst < 0 {
		return fmt.Errorf("proxy: rate limits must be >= 0")
	}
	return nil
}
