package remap

import (
	"sync"

	"refract/internal/calib"
)

// Key identifies one cached table: a camera at a specific target geometry.
type Key struct {
	Camera     string
	Width      int
	Height     int
	FOVDegrees float64
}

// Cache holds remap tables for the lifetime of a run. Tables are built
// lazily on first use and never invalidated; a changed target geometry is a
// different key.
type Cache struct {
	mu     sync.Mutex
	tables map[Key]*Table
}

func NewCache() *Cache {
	return &Cache{tables: make(map[Key]*Table)}
}

// Get returns the table for key, building it on first use.
func (c *Cache) Get(key Key, src, dst calib.LensModel) *Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	if table, ok := c.tables[key]; ok {
		return table
	}
	table := Build(src, dst)
	c.tables[key] = table
	return table
}

// Len reports how many tables the cache holds.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}
