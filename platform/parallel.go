package platform

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/LynnColeArt/sbench"
)

// ParallelFor splits [0, n) into contiguous chunks and runs fn on each from
// its own goroutine. It returns once every chunk has finished. Work items
// must write disjoint output; no synchronization happens inside the region.
// A panic in any chunk is returned as a platform error.
func ParallelFor(workers, n int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if n < workers {
		workers = n
	}
	perWorker := (n + workers - 1) / workers

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		lo := w * perWorker
		hi := lo + perWorker
		if hi > n {
			hi = n
		}
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = sbench.NewPlatformError("ParallelFor", fmt.Sprintf("worker [%d,%d) panicked", lo, hi), fmt.Errorf("%v", r))
					}
					mu.Unlock()
				}
			}()
			if lo < hi {
				fn(lo, hi)
			}
		}()
	}
	wg.Wait()
	return firstErr
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}

// stream processes submitted tasks in order on a single goroutine.
type stream struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newStream() *stream {
	s := &stream{tasks: make(chan func(), 64)}
	go s.worker()
	return s
}

// worker processes tasks for a stream
func (s *stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
}

// submit adds a task to the stream
func (s *stream) submit(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}

// synchronize waits for all tasks in the stream to complete
func (s *stream) synchronize() {
	s.wg.Wait()
}

func (s *stream) close() {
	s.once.Do(func() {
		s.wg.Wait()
		close(s.tasks)
	})
}
