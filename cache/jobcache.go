// Package cache holds job-description embeddings so repeated candidate
// searches against the same job do not re-embed the description. The
// cache is the only long-lived mutable state in the process besides the
// resolved model names, so it is strictly bounded.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Entry is a cached job-description embedding with its metadata.
type Entry struct {
	Embedding []float32
	Metadata  map[string]string
}

// JobCache is a bounded, thread-safe LRU of job-id → Entry.
type JobCache struct {
	lru *lru.Cache[string, Entry]
}

// New creates a JobCache with the given capacity. Capacity must be
// positive; zero falls back to 256.
func New(capacity int) (*JobCache, error) {
	if capacity <= 0 {
		capacity = 256
	}
	c, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, err
	}
	return &JobCache{lru: c}, nil
}

// Store inserts or replaces the entry for a job, evicting the least
// recently used entry when the cache is full.
func (c *JobCache) Store(jobID string, e Entry) {
	c.lru.Add(jobID, e)
}

// Get returns the entry for a job and promotes it to most recently used.
func (c *JobCache) Get(jobID string) (Entry, bool) {
	return c.lru.Get(jobID)
}

// Delete removes the entry for a job.
func (c *JobCache) Delete(jobID string) {
	c.lru.Remove(jobID)
}

// Len returns the current number of cached entries.
func (c *JobCache) Len() int {
	return c.lru.Len()
}
