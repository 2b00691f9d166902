// Package identity issues fresh node ids.
package identity

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"
)

// Strategies accepted by New.
const (
	StrategyClock = "clock"
	StrategyUUID  = "uuid"
	StrategyXID   = "xid"
)

// Generator returns an id distinct from every id it issued before.
type Generator interface {
	NewID() string
}

// Observer is implemented by generators that must stay clear of ids issued
// by an earlier process, e.g. ids found in a rehydrated forest.
type Observer interface {
	Observe(ids ...string)
}

// New returns the generator for strategy.
func New(strategy string) (Generator, error) {
	switch strategy {
	case StrategyClock, "":
		return NewClock(), nil
	case StrategyUUID:
		return UUID{}, nil
	case StrategyXID:
		return XID{}, nil
	default:
		return nil, fmt.Errorf("identity: unknown strategy %q", strategy)
	}
}

// Clock issues millisecond wall-clock ids. Two calls within the same
// millisecond, or a clock that moves backwards, still yield strictly
// increasing values.
type Clock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewClock returns a Clock reading the system time.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewID implements Generator.
func (c *Clock) NewID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms := c.now().UnixMilli()
	if ms <= c.last {
		ms = c.last + 1
	}
	c.last = ms
	return strconv.FormatInt(ms, 10)
}

// observeHorizon bounds how far ahead of the wall clock Observe will move.
const observeHorizon = 24 * time.Hour

// Observe moves the clock past every numeric id in ids. Values more than
// observeHorizon ahead of now are not clock ids and are ignored; the editor
// redraws on any collision with them.
func (c *Clock) Observe(ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	limit := c.now().Add(observeHorizon).UnixMilli()
	for _, id := range ids {
		v, err := strconv.ParseInt(id, 10, 64)
		if err != nil || v > limit {
			continue
		}
		if v > c.last {
			c.last = v
		}
	}
}

// UUID issues random version 4 UUIDs.
type UUID struct{}

// NewID implements Generator.
func (UUID) NewID() string { return uuid.NewString() }

// XID issues globally unique, sortable xids.
type XID struct{}

// NewID implements Generator.
func (XID) NewID() string { return xid.New().String() }
