package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// MaxMessageSize is the anti-spam cap on message body length in bytes.
const MaxMessageSize = 1500

// FilterConfig describes the noise rules. Instances are treated as
// immutable once installed; updates install a fresh snapshot.
type FilterConfig struct {
	// BlockedSenders are counterpart identities dropped outright
	// (known bots and broadcast channels).
	BlockedSenders []string `json:"blocked_senders"`

	// Keywords are case-sensitive substrings that mark a message as noise.
	Keywords []string `json:"keywords"`

	// MarkerPrefixes flag automated/system broadcasts by their first
	// characters.
	MarkerPrefixes []string `json:"marker_prefixes"`

	// MaxMessageSize caps the message body length in bytes.
	MaxMessageSize int `json:"max_message_size"`
}

// DefaultFilterConfig returns the built-in noise rules.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		BlockedSenders: []string{"Telegram", "NewsBot", "SpamInfoBot", "PremiumBot"},
		Keywords:       []string{"t.me/joinchat", "crypto signals", "розіграш"},
		MarkerPrefixes: []string{"[broadcast]", "❗️❗️❗️", "/"},
		MaxMessageSize: MaxMessageSize,
	}
}

// Filter decides whether a message is noise that must be dropped before it
// reaches the session table or the message log. The active configuration is
// an atomically swapped snapshot, so concurrent checks never observe a
// partially updated rule set.
type Filter struct {
	cfg     atomic.Pointer[FilterConfig]
	dropped atomic.Uint64
	logger  *slog.Logger
}

// NewFilter creates a Filter with the given configuration.
func NewFilter(cfg FilterConfig, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f := &Filter{logger: logger.With("component", "filter")}
	f.Update(cfg)
	return f
}

// ShouldExclude reports whether the message is noise, with the matched rule
// for observability. Filtering is a policy decision, not a fault: drops are
// counted and logged but never surfaced to the counterpart.
func (f *Filter) ShouldExclude(counterpart, text string) (bool, string) {
	cfg := f.cfg.Load()

	for _, sender := range cfg.BlockedSenders {
		if counterpart == sender {
			return f.drop("blocked_sender")
		}
	}
	if cfg.MaxMessageSize > 0 && len(text) > cfg.MaxMessageSize {
		return f.drop("oversized")
	}
	for _, prefix := range cfg.MarkerPrefixes {
		if prefix != "" && strings.HasPrefix(text, prefix) {
			return f.drop("marker_prefix")
		}
	}
	for _, keyword := range cfg.Keywords {
		if keyword != "" && strings.Contains(text, keyword) {
			return f.drop("keyword")
		}
	}
	return false, ""
}

func (f *Filter) drop(rule string) (bool, string) {
	f.dropped.Add(1)
	return true, rule
}

// Dropped returns the total number of messages excluded so far.
func (f *Filter) Dropped() uint64 {
	return f.dropped.Load()
}

// Config returns a copy of the active configuration snapshot.
func (f *Filter) Config() FilterConfig {
	return *f.cfg.Load()
}

// Update installs a new configuration snapshot. Zero or negative
// MaxMessageSize falls back to the built-in cap.
func (f *Filter) Update(cfg FilterConfig) {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = MaxMessageSize
	}
	f.cfg.Store(&cfg)
	f.logger.Info("filter configuration updated",
		"blocked_senders", len(cfg.BlockedSenders),
		"keywords", len(cfg.Keywords),
		"marker_prefixes", len(cfg.MarkerPrefixes),
		"max_message_size", cfg.MaxMessageSize)
}

// LoadFile reads a JSON configuration file and installs it as the active
// snapshot. A missing file leaves the current configuration in place.
func (f *Filter) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Info("filter configuration file not found, keeping current rules", "path", path)
			return nil
		}
		return fmt.Errorf("failed to read filter configuration: %w", err)
	}

	var cfg FilterConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse filter configuration %q: %w", path, err)
	}

	f.Update(cfg)
	return nil
}

// SaveFile writes the active configuration snapshot as JSON.
func (f *Filter) SaveFile(path string) error {
	data, err := json.MarshalIndent(f.Config(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode filter configuration: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write filter configuration %q: %w", path, err)
	}
	return nil
}
