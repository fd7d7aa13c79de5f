package enhance

import "sync"

// Scope tags namespace cache keys by prompt variant.
const (
	ScopeStudentOfMonth = "sotm"
	ScopeAchievement    = "achievement"
	ScopeGratitude      = "gratitude"
)

// Key identifies one generated fragment.
type Key struct {
	Scope  string
	ItemID string
}

func (k Key) String() string {
	return k.Scope + ":" + k.ItemID
}

// Cache maps content-item keys to generated prose for the lifetime of the
// process. Entries are never evicted or invalidated; repeated writes for a
// key carry equivalent content, so the last write wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewCache returns an empty cache. Construct one at startup and share it.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]string)}
}

// Get returns the cached text for key.
func (c *Cache) Get(key Key) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.entries[key.String()]
	return text, ok
}

// Set stores text for key.
func (c *Cache) Set(key Key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = text
}

// Len returns the number of cached fragments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
