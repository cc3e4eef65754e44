// Package pipeline implements the bounded source/worker/drain scheduler
// used to parallelize per-block work (minimizer sketching, DP extension,
// block compression) while preserving the original submission order on
// the way out (spec.md §4.9).
package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/grailbio/base/syncqueue"
)

// Func does one unit of work on behalf of worker slot (0 is the driver
// goroutine itself; 1..nth-1 are dedicated worker goroutines).
type Func func(slot int, in interface{}) (interface{}, error)

type task struct {
	id   int64
	item interface{}
}

// Pipeline runs Submitted items through fn across nth-1 background
// workers plus the driver, and hands results back through Next in the
// order they were Submitted, regardless of completion order.
//
// When the worker input queue is full, Submit runs fn inline on the
// calling (driver) goroutine instead of blocking — the same self-help
// behavior minimap2's pt_stream uses to avoid a slow drain stalling the
// feeder when there's spare driver cycles to spend.
type Pipeline struct {
	fn     Func
	in     chan task
	queue  *syncqueue.OrderedQueue
	wg     sync.WaitGroup
	nextID int64
}

// New starts a Pipeline with nth-1 background workers (nth<=1 means all
// work runs inline via self-help) and a drain queue that may buffer up to
// queueSize out-of-order results before Insert blocks.
func New(nth, queueSize int, fn Func) *Pipeline {
	if queueSize < 1 {
		queueSize = 1
	}
	nWorkers := nth - 1
	if nWorkers < 0 {
		nWorkers = 0
	}
	p := &Pipeline{
		fn: fn,
		// Capacity matches the worker count, not nth: with no workers
		// (nth<=1), the channel must have zero buffer so Submit's select
		// always falls through to self-help instead of silently queuing
		// an item nothing will ever receive.
		in:    make(chan task, nWorkers),
		queue: syncqueue.NewOrderedQueue(queueSize),
	}
	for slot := 1; slot < nth; slot++ {
		p.wg.Add(1)
		go p.workerLoop(slot)
	}
	return p
}

func (p *Pipeline) workerLoop(slot int) {
	defer p.wg.Done()
	for t := range p.in {
		p.run(slot, t)
	}
}

func (p *Pipeline) run(slot int, t task) {
	out, err := p.fn(slot, t.item)
	if err != nil {
		p.queue.Close(err)
		return
	}
	// Insert's own error means the queue was already closed (by a
	// sibling's failure, or by our own Close); either way there's
	// nothing further to do with this result.
	_ = p.queue.Insert(int(t.id), out)
}

// Submit hands item to the next free worker, or runs it inline if every
// worker is busy and the submission channel is full.
func (p *Pipeline) Submit(item interface{}) {
	id := atomic.AddInt64(&p.nextID, 1) - 1
	t := task{id: id, item: item}
	select {
	case p.in <- t:
	default:
		p.run(0, t)
	}
}

// Next returns the next result in submission order, blocking until it is
// available. ok is false once every submitted item has been drained.
func (p *Pipeline) Next() (interface{}, bool, error) {
	return p.queue.Next()
}

// Close signals that no further items will be Submitted, waits for
// in-flight work to finish, and closes the drain queue so a final Next
// call returns ok=false.
func (p *Pipeline) Close() {
	close(p.in)
	p.wg.Wait()
	p.queue.Close(nil)
}

// Drain collects every remaining result in order. It is a convenience for
// callers that already know the total count, or simply want to block
// until the pipeline empties after Close.
func (p *Pipeline) Drain() ([]interface{}, error) {
	var out []interface{}
	for {
		v, ok, err := p.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, v)
	}
}

// RunSlots is the non-streaming parallel mode (spec.md §4.9): fn is
// called once per slot in 0..nth-1 with the full set of items already in
// hand (e.g. per-reference-block sketching at index build time, or
// per-query-batch mapping). Slots 1..nth-1 run on dedicated goroutines;
// slot 0 runs on the calling goroutine. RunSlots blocks until every slot
// has returned.
func RunSlots(nth int, fn func(slot int)) {
	if nth <= 1 {
		fn(0)
		return
	}
	var wg sync.WaitGroup
	for slot := 1; slot < nth; slot++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			fn(slot)
		}(slot)
	}
	fn(0)
	wg.Wait()
}
