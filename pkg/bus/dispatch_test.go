package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featuremill/pkg/namespace"
)

func TestDispatcherPreservesPerKeyOrder(t *testing.T) {
	d := NewDispatcher(4)

	var mu sync.Mutex
	seen := make(map[string][]int)
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("sym-%d", i%7)
		i := i
		d.Submit(key, func() {
			mu.Lock()
			seen[key] = append(seen[key], i)
			mu.Unlock()
		})
	}
	d.Stop()

	for key, order := range seen {
		for j := 1; j < len(order); j++ {
			require.Less(t, order[j-1], order[j], "out-of-order execution for key %s", key)
		}
	}
}

func TestDispatcherShardIndexStable(t *testing.T) {
	d := NewDispatcher(8)
	defer d.Stop()
	assert.Equal(t, d.ShardIndex("BTC-USD|1m"), d.ShardIndex("BTC-USD|1m"))
	assert.GreaterOrEqual(t, d.ShardIndex("ETH-USD|1m"), 0)
	assert.Less(t, d.ShardIndex("ETH-USD|1m"), d.Shards())
}

func TestOffsetForMode(t *testing.T) {
	assert.Equal(t, "first", OffsetForMode(namespace.ModeHistorical))
	assert.Equal(t, "last", OffsetForMode(namespace.ModeLive))
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	b := NewMemoryBus()
	var got []string
	b.Subscribe("trades", HandlerFunc(func(ctx context.Context, key, value string) error {
		got = append(got, value)
		return nil
	}))

	p := b.Producer("trades")
	for i := 0; i < 5; i++ {
		require.NoError(t, p.KPush(context.Background(), "BTC-USD", fmt.Sprintf("t%d", i)))
	}
	assert.Equal(t, []string{"t0", "t1", "t2", "t3", "t4"}, got)
	assert.Len(t, b.Messages("trades"), 5)
}
