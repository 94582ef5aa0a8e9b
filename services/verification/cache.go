package verification

import (
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "verification_bonus_cache_hits_total"})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "verification_bonus_cache_miss_total"})
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMiss)
}

type compiledBonus struct {
	Program   cel.Program
	UpdatedAt time.Time
}

// ProgramCache keeps compiled bonus expressions keyed by their source.
type ProgramCache struct {
	mu    sync.RWMutex
	items map[string]*compiledBonus
	ttl   time.Duration
	group singleflight.Group
}

func NewProgramCache(ttl time.Duration) *ProgramCache {
	return &ProgramCache{
		items: make(map[string]*compiledBonus),
		ttl:   ttl,
	}
}

func (c *ProgramCache) Get(expr string) (cel.Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[expr]
	if !ok || (c.ttl > 0 && time.Since(v.UpdatedAt) > c.ttl) {
		return nil, false
	}
	return v.Program, true
}

func (c *ProgramCache) Set(expr string, prg cel.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[expr] = &compiledBonus{Program: prg, UpdatedAt: time.Now()}
}

// Load returns the cached program or compiles it once for concurrent callers.
func (c *ProgramCache) Load(expr string, compile func(string) (cel.Program, error)) (cel.Program, error) {
	if prg, ok := c.Get(expr); ok {
		cacheHits.Inc()
		return prg, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(expr, func() (any, error) {
		prg, err := compile(expr)
		if err != nil {
			return nil, err
		}
		c.Set(expr, prg)
		return prg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(cel.Program), nil
}
