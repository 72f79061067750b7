// config.go - debug configuration. The source's process-wide debug mask is
// reworked here as configuration threaded through table construction
// instead of process-global state. Env var parsing itself is grounded on
// psgDebugEnabled (psg_player.go) / the PSG_DEBUG lookup in ym_parser.go,
// generalized from a single bool to a small category set since this
// module's debug surface has more than one axis (ops history vs. verbosity
// categories).

package bufslot

import (
	"os"
	"strings"
)

// DebugCategory is one axis of debug verbosity understood by the table and
// its logging sink.
type DebugCategory string

const (
	// DebugOps enables the bounded operation-history log (bit 0x10000000
	// of the source's buf_slot_debug mask).
	DebugOps DebugCategory = "ops"
	// DebugEntry enables function-entry tracing.
	DebugEntry DebugCategory = "entry"
	// DebugSetup enables setup/reconfiguration tracing.
	DebugSetup DebugCategory = "setup"
	// DebugBuffer enables buffer attach/detach tracing.
	DebugBuffer DebugCategory = "buffer"
	// DebugFrame enables frame attach/detach tracing.
	DebugFrame DebugCategory = "frame"
)

// Config configures a Table at construction. The zero value disables every
// debug category.
type Config struct {
	Debug map[DebugCategory]bool
}

func (c Config) has(cat DebugCategory) bool {
	if c.Debug == nil {
		return false
	}
	return c.Debug[cat]
}

// ConfigFromEnv parses BUFSLOT_DEBUG, a comma-separated list of category
// tokens (e.g. "ops,buffer"), into a Config. Replaces the source's single
// opaque bitmask read from a process-global; intended to be called once by
// the caller's own startup code and threaded into Init, not read again
// inside the library.
func ConfigFromEnv() Config {
	raw := os.Getenv("BUFSLOT_DEBUG")
	cfg := Config{Debug: make(map[DebugCategory]bool)}
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		cfg.Debug[DebugCategory(tok)] = true
	}
	return cfg
}
