package bus

import (
	"hash/fnv"
	"sync"

	"github.com/zeromicro/go-zero/core/rescue"
)

// Dispatcher routes work by key onto a fixed set of sequential shard
// workers. All records sharing a key run on the same shard in submission
// order, which is the pipeline's only ordering guarantee; shards run in
// parallel and share no state.
type Dispatcher struct {
	shards []chan func()
	wg     sync.WaitGroup
	once   sync.Once
}

// NewDispatcher starts n shard workers. n must be positive.
func NewDispatcher(n int) *Dispatcher {
	if n <= 0 {
		n = 1
	}
	d := &Dispatcher{shards: make([]chan func(), n)}
	for i := range d.shards {
		ch := make(chan func(), 1024)
		d.shards[i] = ch
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for fn := range ch {
				run(fn)
			}
		}()
	}
	return d
}

func run(fn func()) {
	defer rescue.Recover()
	fn()
}

// ShardIndex returns the shard a key maps to.
func (d *Dispatcher) ShardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// Shards returns the worker count.
func (d *Dispatcher) Shards() int {
	return len(d.shards)
}

// Submit enqueues fn on the key's shard. Blocks when the shard backlog is
// full, which back-pressures the consumer loop.
func (d *Dispatcher) Submit(key string, fn func()) {
	d.shards[d.ShardIndex(key)] <- fn
}

// Stop drains all shards and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		for _, ch := range d.shards {
			close(ch)
		}
	})
	d.wg.Wait()
}
