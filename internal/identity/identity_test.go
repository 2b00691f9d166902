package identity

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StrictlyIncreasingWithinSameMillisecond(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	c := &Clock{now: func() time.Time { return fixed }}

	a, b, d := c.NewID(), c.NewID(), c.NewID()
	assert.Equal(t, "1700000000000", a)
	assert.Equal(t, "1700000000001", b)
	assert.Equal(t, "1700000000002", d)
}

func TestClock_BackwardsClock(t *testing.T) {
	now := time.UnixMilli(2_000)
	c := &Clock{now: func() time.Time { return now }}
	first := c.NewID()
	now = time.UnixMilli(1_000)
	second := c.NewID()

	f, _ := strconv.ParseInt(first, 10, 64)
	s, _ := strconv.ParseInt(second, 10, 64)
	assert.Greater(t, s, f)
}

func TestClock_ObserveSkipsPastExistingIDs(t *testing.T) {
	c := &Clock{now: func() time.Time { return time.UnixMilli(10) }}
	c.Observe("500", "not-a-number", "42")
	assert.Equal(t, "501", c.NewID())
}

func TestClock_ObserveIgnoresFarFutureIDs(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	c := &Clock{now: func() time.Time { return now }}
	c.Observe(strconv.FormatInt(math.MaxInt64, 10), "99999999999999999")

	a, b := c.NewID(), c.NewID()
	assert.Equal(t, "1700000000000", a)
	assert.Equal(t, "1700000000001", b)

	// An id a few seconds ahead is still honored.
	c.Observe("1700000005000")
	assert.Equal(t, "1700000005001", c.NewID())
}

func TestGenerators_Unique(t *testing.T) {
	for _, strategy := range []string{StrategyClock, StrategyUUID, StrategyXID} {
		t.Run(strategy, func(t *testing.T) {
			g, err := New(strategy)
			require.NoError(t, err)
			seen := make(map[string]struct{})
			for i := 0; i < 5000; i++ {
				id := g.NewID()
				_, dup := seen[id]
				require.False(t, dup, "duplicate id %s", id)
				seen[id] = struct{}{}
			}
		})
	}
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("sequence")
	assert.Error(t, err)
}
