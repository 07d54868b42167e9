package reference

import (
	"sync"

	"github.com/chrissnell/pvforecast/internal/log"
)

// Cache holds the process-wide reference tables.  They are loaded on first use
// and replaced only by an explicit Reload.
type Cache struct {
	astronomicalPath string
	hourAnglePath    string

	mu     sync.RWMutex
	tables *Tables
}

// NewCache returns a cache that loads from the given CSV files.
func NewCache(astronomicalPath, hourAnglePath string) *Cache {
	return &Cache{astronomicalPath: astronomicalPath, hourAnglePath: hourAnglePath}
}

// NewStaticCache returns a cache that always serves t.
func NewStaticCache(t *Tables) *Cache {
	return &Cache{tables: t}
}

// Get returns the cached tables, loading them if this is the first call.  A
// failed load is not cached, so the next call tries again.
func (c *Cache) Get() (*Tables, error) {
	c.mu.RLock()
	t := c.tables
	c.mu.RUnlock()
	if t != nil {
		return t, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tables != nil {
		return c.tables, nil
	}
	return c.load()
}

// Reload rereads the tables from disk.  On failure the previous tables stay in
// place.
func (c *Cache) Reload() (*Tables, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

func (c *Cache) load() (*Tables, error) {
	t, err := Load(c.astronomicalPath, c.hourAnglePath)
	if err != nil {
		log.Errorf("could not load reference tables: %v", err)
		return nil, err
	}
	astro, hours := t.Len()
	log.Infow("loaded reference tables",
		"astronomical", c.astronomicalPath, "astronomical_rows", astro,
		"hour_angle", c.hourAnglePath, "hour_angle_rows", hours)
	c.tables = t
	return t, nil
}
