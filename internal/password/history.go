package password

import (
	"sync"
	"time"
)

// HistoryEntry is one remembered password, stored as an SSHA hash.
type HistoryEntry struct {
	Hash string
	Time time.Time
}

// History tracks previous password hashes to prevent reuse.
// It keeps at most maxCount entries, newest first; adding beyond the
// limit evicts the oldest.
type History struct {
	mu       sync.RWMutex
	entries  []HistoryEntry
	maxCount int
}

// NewHistory creates a new password history tracker with the specified
// maximum number of passwords to remember.
// If maxCount is 0 or negative, history tracking is effectively disabled.
func NewHistory(maxCount int) *History {
	if maxCount < 0 {
		maxCount = 0
	}
	return &History{
		entries:  make([]HistoryEntry, 0, maxCount),
		maxCount: maxCount,
	}
}

// NewHistoryFromEntries creates a History from stored entries, newest first.
func NewHistoryFromEntries(entries []HistoryEntry, maxCount int) *History {
	h := NewHistory(maxCount)
	n := len(entries)
	if n > h.maxCount {
		n = h.maxCount
	}
	h.entries = append(h.entries, entries[:n]...)
	return h
}

// Add remembers text, hashed with a fresh salt, as used at time at.
func (h *History) Add(text string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxCount == 0 {
		return nil
	}

	hash, err := SSHA(text)
	if err != nil {
		return err
	}

	h.entries = append([]HistoryEntry{{Hash: hash, Time: at}}, h.entries...)
	if len(h.entries) > h.maxCount {
		h.entries = h.entries[:h.maxCount]
	}
	return nil
}

// Contains reports whether text matches any remembered password.
func (h *History) Contains(text string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range h.entries {
		if VerifySSHA(e.Hash, text) {
			return true
		}
	}
	return false
}

// Count returns the number of entries currently stored.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// MaxCount returns the maximum number of entries that can be stored.
func (h *History) MaxCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.maxCount
}

// Entries returns a copy of all stored entries, newest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]HistoryEntry, len(h.entries))
	copy(result, h.entries)
	return result
}

// SetMaxCount updates the limit, evicting the oldest entries if needed.
func (h *History) SetMaxCount(maxCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if maxCount < 0 {
		maxCount = 0
	}
	h.maxCount = maxCount
	if len(h.entries) > maxCount {
		h.entries = h.entries[:maxCount]
	}
}

// Clear removes all stored entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = h.entries[:0]
}

// Clone creates a deep copy of the history.
func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	clone := &History{
		maxCount: h.maxCount,
		entries:  make([]HistoryEntry, len(h.entries)),
	}
	copy(clone.entries, h.entries)
	return clone
}

// Equal reports whether both histories hold the same entries.
func (h *History) Equal(other *History) bool {
	if h == nil || other == nil {
		return (h == nil || h.Count() == 0) && (other == nil || other.Count() == 0)
	}
	a, b := h.Entries(), other.Entries()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Hash != b[i].Hash || !a[i].Time.Equal(b[i].Time) {
			return false
		}
	}
	return true
}
