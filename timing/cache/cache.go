// Package cache models an L1 data cache using Akita cache components. It
// tracks tags only: the model predicts hits and misses for an address
// stream, it does not hold data.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `yaml:"size"`
	// Associativity (number of ways)
	Associativity int `yaml:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `yaml:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `yaml:"hit_latency"`
	// MissLatency in cycles (includes the next level's access time)
	MissLatency uint64 `yaml:"miss_latency"`
}

// DefaultL1DConfig returns a typical desktop x86 L1 data cache:
// 32KB, 8-way, 64B lines, 4-cycle load-to-use.
func DefaultL1DConfig() Config {
	return Config{
		Size:          32 * 1024,
		Associativity: 8,
		BlockSize:     64,
		HitLatency:    4,
		MissLatency:   14,
	}
}

// M2L1DConfig returns the Apple M2 performance-core L1 data cache:
// 128KB, 8-way, 64B lines.
func M2L1DConfig() Config {
	return Config{
		Size:          128 * 1024,
		Associativity: 8,
		BlockSize:     64,
		HitLatency:    3,
		MissLatency:   12,
	}
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.BlockSize <= 0 || c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block_size must be a positive power of two, got %d", c.BlockSize)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be > 0, got %d", c.Associativity)
	}
	if c.Size < c.BlockSize*c.Associativity || c.Size%(c.BlockSize*c.Associativity) != 0 {
		return fmt.Errorf("size %d is not a multiple of associativity*block_size (%d)",
			c.Size, c.BlockSize*c.Associativity)
	}
	return nil
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access takes.
	Latency uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// Accesses is Reads + Writes.
func (s Statistics) Accesses() uint64 { return s.Reads + s.Writes }

// MissRate is Misses per access, or 0 without accesses.
func (s Statistics) MissRate() float64 {
	if s.Accesses() == 0 {
		return 0
	}
	return float64(s.Misses) / float64(s.Accesses())
}

// Cache is a write-allocate, write-back, LRU set-associative cache.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	stats     Statistics
}

// New creates a cache with the given configuration.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	numSets := config.Size / (config.Associativity * config.BlockSize)
	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
	}, nil
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Read looks up addr and allocates its line on a miss.
func (c *Cache) Read(addr uint64) AccessResult {
	c.stats.Reads++
	return c.access(addr, false)
}

// Write looks up addr, allocating on a miss, and marks the line dirty.
func (c *Cache) Write(addr uint64) AccessResult {
	c.stats.Writes++
	return c.access(addr, true)
}

func (c *Cache) access(addr uint64, isWrite bool) AccessResult {
	blockAddr := (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		if isWrite {
			block.IsDirty = true
		}
		return AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	result := AccessResult{Latency: c.config.MissLatency}

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}
	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		if victim.IsDirty {
			c.stats.Writebacks++
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = isWrite
	c.directory.Visit(victim)

	return result
}

// Reset invalidates all lines and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.stats = Statistics{}
}
