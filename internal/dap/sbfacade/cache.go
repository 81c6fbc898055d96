// Package sbfacade wraps the backend's Python scripting surface (the "SB"
// API in lldb-dap's own terminology) behind Go methods: each call issues a
// silent `evaluate` request carrying a `script <python-expr>` command and
// decodes the repr-quoted result string lldb-dap's auto-display channel
// returns (spec.md §4.5, §9 "Scripted-SB value transport").
package sbfacade

import (
	"sync"

	"golang.org/x/crypto/blake2b"
)

// ScriptCache remembers the result of scripts the orchestrator knows are
// idempotent within a session — the one-shot error-check helper
// definition chief among them — so relaunching inside the same proxy
// process doesn't re-send setup commands the backend has already seen.
// Adapted from the teacher's pkg/engine/command_cache.go: an RWMutex-
// guarded map plus hit/miss counters, but keyed by a content hash of the
// script itself (there are no arguments to separate) and with no
// expiration, since a script's idempotence doesn't decay over time the
// way a shell command's output might.
type ScriptCache struct {
	mu        sync.RWMutex
	entries   map[[blake2b.Size256]byte]string
	maxSize   int
	hitCount  int64
	missCount int64
	order     [][blake2b.Size256]byte
}

// NewScriptCache builds a cache holding at most maxSize entries.
func NewScriptCache(maxSize int) *ScriptCache {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &ScriptCache{
		entries: make(map[[blake2b.Size256]byte]string),
		maxSize: maxSize,
	}
}

func scriptKey(script string) [blake2b.Size256]byte {
	return blake2b.Sum256([]byte(script))
}

// Get returns the cached result for script, if present.
func (c *ScriptCache) Get(script string) (string, bool) {
	key := scriptKey(script)

	c.mu.RLock()
	result, ok := c.entries[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.hitCount++
	} else {
		c.missCount++
	}
	c.mu.Unlock()
	return result, ok
}

// Put records script's result, evicting the oldest entry first if the
// cache is full.
func (c *ScriptCache) Put(script, result string) {
	key := scriptKey(script)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = result
}

// Stats returns hit/miss counters and the current entry count.
func (c *ScriptCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hitCount, c.missCount, len(c.entries)
}
