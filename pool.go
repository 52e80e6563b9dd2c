package tracking

import (
	"runtime"
	"sync"
)

// Pool is a bounded set of workers used to run the fork-join loops of grid
// construction and carving.  A Pool is safe for concurrent use.
type Pool struct {
	// tokens limit the number of chunks running at the same time
	tokens chan struct{}
	// size of pool
	size   int
	mu     sync.Mutex
	closed bool
}

// NewPool creates a new worker pool.  A size below one uses the number of
// CPUs available
func NewPool(size int) *Pool {

	if size < 1 {
		size = runtime.NumCPU()
	}

	p := &Pool{
		tokens: make(chan struct{}, size),
		size:   size,
	}

	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}

	return p
}

// Size returns the number of workers in the pool
func (p *Pool) Size() int {
	return p.size
}

// ParallelFor splits the range [0,n) into contiguous chunks and calls fn for
// each of them across the pool workers, blocking until all chunks have
// returned.  Once the pool is closed the range is run on the calling goroutine.
// fn must not call ParallelFor on the same pool.
func (p *Pool) ParallelFor(n int, fn func(start, end int)) {

	if n <= 0 {
		return
	}

	workers := p.size
	if workers > n {
		workers = n
	}

	if workers <= 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup

	for start := 0; start < n; start += chunk {

		end := start + chunk
		if end > n {
			end = n
		}

		token, ok := <-p.tokens

		if !ok {
			// pool closed, finish the remaining work inline
			fn(start, n)
			break
		}

		wg.Add(1)

		go func(start, end int) {
			defer wg.Done()
			defer p.release(token)
			fn(start, end)
		}(start, end)
	}

	wg.Wait()
}

// release returns a worker token to the pool
func (p *Pool) release(token struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.tokens <- token
}

// Close the pool, subsequent loops run on the calling goroutine
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.tokens)
}
