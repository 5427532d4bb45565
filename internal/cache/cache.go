// Package cache persists flow document snapshots on disk.
// Snapshots are snappy-compressed and tracked in a JSON index so a live
// session can be restored after a restart.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/snappy"

	"github.com/sdelrio0/xyflow-flow/pkg/flow"
)

// ErrNotFound is returned when no usable snapshot exists for a key
var ErrNotFound = errors.New("cache: snapshot not found")

const indexVersion = "1.0"

// Cache stores document snapshots under a directory
type Cache struct {
	mu       sync.RWMutex
	dir      string
	index    *Index
	maxSize  int64 // Maximum size of compressed snapshots in bytes
	maxAge   time.Duration
	strategy EvictionStrategy

	statsMu sync.Mutex
	stats   Stats

	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// Index tracks all cached snapshots
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry describes a single snapshot
type Entry struct {
	Key         string    `json:"key"`
	Hash        string    `json:"hash"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	RawSize     int64     `json:"raw_size"`
	Nodes       int       `json:"nodes,omitempty"`
	Edges       int       `json:"edges,omitempty"`
	Created     time.Time `json:"created"`
	LastAccess  time.Time `json:"last_access"`
	AccessCount int       `json:"access_count"`
}

// Stats tracks cache usage
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Writes     int64 `json:"writes"`
	Evictions  int64 `json:"evictions"`
	TotalSize  int64 `json:"total_size"`
	EntryCount int   `json:"entry_count"`
}

// EvictionStrategy defines how snapshots are removed when the cache is full
type EvictionStrategy int

const (
	// LRU removes least recently used entries
	LRU EvictionStrategy = iota
	// LFU removes least frequently used entries
	LFU
	// FIFO removes oldest entries first
	FIFO
)

// ParseStrategy maps a config value to a strategy. Unknown names fall back
// to LRU.
func ParseStrategy(name string) EvictionStrategy {
	switch strings.ToLower(name) {
	case "lfu":
		return LFU
	case "fifo":
		return FIFO
	default:
		return LRU
	}
}

// Config holds cache configuration
type Config struct {
	Dir             string           // Cache directory (default: $HOME/.cache/vflow)
	MaxSize         int64            // Maximum cache size in bytes (default: 256MB)
	MaxAge          time.Duration    // Maximum age for snapshots (default: 30 days)
	Strategy        EvictionStrategy // Eviction strategy (default: LRU)
	CleanupInterval time.Duration    // How often expired snapshots are swept (default: 1h)
}

// DefaultConfig returns the default cache configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		Dir:             filepath.Join(homeDir, ".cache", "vflow"),
		MaxSize:         256 << 20,
		MaxAge:          30 * 24 * time.Hour,
		Strategy:        LRU,
		CleanupInterval: time.Hour,
	}
}

// New opens or creates a cache
func New(config Config) (*Cache, error) {
	defaults := DefaultConfig()
	if config.Dir == "" {
		config.Dir = defaults.Dir
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	if err := os.MkdirAll(filepath.Join(config.Dir, "snapshots"), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	c := &Cache{
		dir:      config.Dir,
		maxSize:  config.MaxSize,
		maxAge:   config.MaxAge,
		strategy: config.Strategy,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		index:    newIndex(),
	}

	// A missing or corrupted index starts the cache fresh
	if err := c.loadIndex(); err != nil {
		c.index = newIndex()
	}

	go c.cleanupLoop(config.CleanupInterval)

	return c, nil
}

func newIndex() *Index {
	return &Index{
		Version: indexVersion,
		Entries: make(map[string]*Entry),
		Updated: time.Now(),
	}
}

// Get returns the uncompressed snapshot stored under key
func (c *Cache) Get(key string) ([]byte, error) {
	c.mu.RLock()
	entry, exists := c.index.Entries[key]
	var path string
	if exists {
		path = entry.Path
	}
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, ErrNotFound
	}

	if c.isExpired(entry) {
		c.Delete(key)
		c.recordMiss()
		return nil, ErrNotFound
	}

	compressed, err := os.ReadFile(path)
	if err != nil {
		c.Delete(key)
		c.recordMiss()
		return nil, ErrNotFound
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		c.Delete(key)
		c.recordMiss()
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}

	c.mu.Lock()
	entry.LastAccess = c.now()
	entry.AccessCount++
	c.mu.Unlock()

	c.recordHit()
	return data, nil
}

// Put stores data under key, replacing any previous snapshot
func (c *Cache) Put(key string, data []byte) error {
	return c.put(key, data, 0, 0)
}

func (c *Cache) put(key string, data []byte, nodes, edges int) error {
	hash := hashBytes(data)

	c.mu.RLock()
	if existing, ok := c.index.Entries[key]; ok && existing.Hash == hash {
		c.mu.RUnlock()
		return nil
	}
	c.mu.RUnlock()

	compressed := snappy.Encode(nil, data)
	size := int64(len(compressed))

	c.mu.Lock()
	defer c.mu.Unlock()

	c.ensureSpace(key, size)

	path := filepath.Join(c.dir, "snapshots", fmt.Sprintf("%s_%s.sz", sanitizeKey(key), hash[:8]))
	if err := writeFileAtomic(path, compressed); err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}

	now := c.now()
	entry := &Entry{
		Key:        key,
		Hash:       hash,
		Path:       path,
		Size:       size,
		RawSize:    int64(len(data)),
		Nodes:      nodes,
		Edges:      edges,
		Created:    now,
		LastAccess: now,
	}

	var replaced int64
	if old, ok := c.index.Entries[key]; ok {
		if old.Path != path {
			removeFile(old.Path)
		}
		replaced = old.Size
	}
	c.index.Entries[key] = entry
	c.index.Updated = now

	c.statsMu.Lock()
	c.stats.Writes++
	c.stats.TotalSize -= replaced
	c.stats.TotalSize += size
	c.stats.EntryCount = len(c.index.Entries)
	c.statsMu.Unlock()

	return c.saveIndexNoLock()
}

// Save stores a document snapshot
func (c *Cache) Save(key string, doc flow.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	return c.put(key, data, len(doc.Nodes), len(doc.Edges))
}

// Load restores a document snapshot
func (c *Cache) Load(key string) (flow.Document, error) {
	data, err := c.Get(key)
	if err != nil {
		return flow.Document{}, err
	}
	var doc flow.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return flow.Document{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return doc, nil
}

// Entry returns the index entry for key
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.index.Entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Keys returns the cached keys in sorted order
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.index.Entries))
	for k := range c.index.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Delete removes a snapshot
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		return nil
	}
	c.removeEntry(key, entry)
	c.index.Updated = c.now()

	return c.saveIndexNoLock()
}

// Clear removes every snapshot
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Join(c.dir, "snapshots")
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}

	c.index = newIndex()

	c.statsMu.Lock()
	c.stats = Stats{}
	c.statsMu.Unlock()

	return c.saveIndexNoLock()
}

// Stats returns a copy of the cache statistics
func (c *Cache) Stats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Close stops the cleanup goroutine and saves the index
func (c *Cache) Close() error {
	c.once.Do(func() { close(c.stopCh) })

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saveIndexNoLock()
}

// Sweep removes expired snapshots and returns how many were removed
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.index.Entries {
		if c.isExpired(entry) {
			c.removeEntry(key, entry)
			removed++
		}
	}
	if removed > 0 {
		c.index.Updated = c.now()
		c.saveIndexNoLock()
	}
	return removed
}

func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Entries == nil {
		index.Entries = make(map[string]*Entry)
	}
	c.index = &index

	var totalSize int64
	for _, entry := range c.index.Entries {
		totalSize += entry.Size
	}
	c.stats.TotalSize = totalSize
	c.stats.EntryCount = len(c.index.Entries)

	return nil
}

// saveIndexNoLock saves the index without acquiring a lock.
// Caller must hold at least a read lock.
func (c *Cache) saveIndexNoLock() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(c.dir, "index.json"), data)
}

func (c *Cache) isExpired(entry *Entry) bool {
	// If maxAge is 0 or negative, entries never expire
	if c.maxAge <= 0 {
		return false
	}
	return c.now().Sub(entry.Created) > c.maxAge
}

// ensureSpace evicts entries other than key until needed bytes fit.
// Caller must hold the write lock.
func (c *Cache) ensureSpace(key string, needed int64) {
	if c.maxSize <= 0 {
		return
	}

	for {
		var used int64
		for k, e := range c.index.Entries {
			if k != key {
				used += e.Size
			}
		}
		if used+needed <= c.maxSize {
			return
		}

		evictKey, evictEntry := c.victim(key)
		if evictEntry == nil {
			return
		}
		c.removeEntry(evictKey, evictEntry)

		c.statsMu.Lock()
		c.stats.Evictions++
		c.statsMu.Unlock()
	}
}

// victim picks the entry to evict according to the strategy
func (c *Cache) victim(skip string) (string, *Entry) {
	var evictKey string
	var evictEntry *Entry

	for key, entry := range c.index.Entries {
		if key == skip {
			continue
		}
		if evictEntry == nil {
			evictKey, evictEntry = key, entry
			continue
		}
		switch c.strategy {
		case LFU:
			if entry.AccessCount < evictEntry.AccessCount {
				evictKey, evictEntry = key, entry
			}
		case FIFO:
			if entry.Created.Before(evictEntry.Created) {
				evictKey, evictEntry = key, entry
			}
		default:
			if entry.LastAccess.Before(evictEntry.LastAccess) {
				evictKey, evictEntry = key, entry
			}
		}
	}
	return evictKey, evictEntry
}

// removeEntry drops an entry and its file. Caller must hold the write lock.
func (c *Cache) removeEntry(key string, entry *Entry) {
	removeFile(entry.Path)
	delete(c.index.Entries, key)

	c.statsMu.Lock()
	c.stats.TotalSize -= entry.Size
	c.stats.EntryCount = len(c.index.Entries)
	c.statsMu.Unlock()
}

func (c *Cache) recordHit() {
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *Cache) recordMiss() {
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}

func removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove snapshot %s: %v\n", path, err)
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func sanitizeKey(key string) string {
	// Replace problematic characters for filesystem
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	sanitized := replacer.Replace(key)

	// Limit length
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}

	return sanitized
}
