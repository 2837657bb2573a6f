// Package runtime holds the single atomically-swapped configuration
// snapshot shared by the gate and the admin surface, implementing
// the copy-on-write re-architecture called for by the design notes on
// global mutable config.
package runtime

import (
	"sync/atomic"

	"github.com/SomebodyForSomeone/WAF-lya/internal/waf/config"
)

// ConfigHolder wraps an atomic.Pointer[config.Config] so every reader
// sees a consistent, fully-formed snapshot rather than torn individual
// fields.
type ConfigHolder struct {
	ptr atomic.Pointer[config.Config]
}

// NewConfigHolder seeds the holder with an initial config.
func NewConfigHolder(initial *config.Config) *ConfigHolder {
	h := &ConfigHolder{}
	h.ptr.Store(initial)
	return h
}

// Load returns the current snapshot.
func (h *ConfigHolder) Load() *config.Config {
	return h.ptr.Load()
}

// Store swaps in a new snapshot wholesale.
func (h *ConfigHolder) Store(cfg *config.Config) {
	h.ptr.Store(cfg)
}
