package interaction

import "sync"

// KeywordState holds the most recently recognised speech keyword. It is
// instantaneous state, not a queue: Set replaces the previous keyword.
// Safe for concurrent use.
type KeywordState struct {
	mu      sync.RWMutex
	keyword Keyword
}

// Set replaces the active keyword. KeywordInvariant clears it.
func (k *KeywordState) Set(kw Keyword) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keyword = kw
}

// Keyword implements KeywordSource.
func (k *KeywordState) Keyword() Keyword {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.keyword
}
