package game

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/pthm-cable/flock/systems"
)

// batch is a half-open range of particle indices handed to one worker.
type batch struct {
	start, end int
}

// batchResult reports a finished batch; err is set when the kernel panicked.
type batchResult struct {
	batch batch
	err   error
}

// workerScratch holds per-worker reusable buffers.
type workerScratch struct {
	Neighbors []systems.Neighbor
}

// workerPool runs the simulation stage over fixed-size batches.
// Workers read only the frame snapshot and spatial index and write only their own batch of the store.
type workerPool struct {
	numWorkers int
	batchSize  int
	threshold  int
	scratches  []workerScratch

	// Worker pool channels
	workChan chan batch       // sends work to workers
	doneChan chan batchResult // workers signal completion
	stopChan chan struct{}    // signals workers to exit
	wg       sync.WaitGroup   // tracks active workers
	running  bool             // true if workers are running
}

// newWorkerPool sizes the pool; workers <= 0 means GOMAXPROCS.
func newWorkerPool(workers, batchSize, threshold int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	scratches := make([]workerScratch, workers)
	for i := range scratches {
		scratches[i].Neighbors = make([]systems.Neighbor, 0, 64)
	}
	return &workerPool{
		numWorkers: workers,
		batchSize:  max(batchSize, 1),
		threshold:  threshold,
		scratches:  scratches,
	}
}

// startWorkers launches persistent worker goroutines.
func (p *workerPool) startWorkers(g *Game) {
	if p.running {
		return
	}

	p.workChan = make(chan batch, p.numWorkers)
	p.doneChan = make(chan batchResult, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := range p.numWorkers {
		p.wg.Add(1)
		go p.worker(g, i)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *workerPool) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing batches until stopped.
func (p *workerPool) worker(g *Game, workerID int) {
	defer p.wg.Done()
	scratch := &p.scratches[workerID]

	for {
		select {
		case <-p.stopChan:
			return
		case b, ok := <-p.workChan:
			if !ok {
				return
			}
			p.doneChan <- batchResult{batch: b, err: g.simulateBatchSafe(b, scratch)}
		}
	}
}

// run updates particles [0, n) and returns once every batch has completed.
// Batch failures are joined; the caller decides what a failed frame means.
func (p *workerPool) run(g *Game, n int) error {
	if n < p.threshold {
		// Single-threaded for small populations
		return g.simulateBatchSafe(batch{start: 0, end: n}, &p.scratches[0])
	}

	if !p.running {
		p.startWorkers(g)
	}

	total := (n + p.batchSize - 1) / p.batchSize
	next, done := 0, 0
	var errs []error

	// Dispatch and collect together so a full done channel never stalls dispatch
	for done < total {
		var work chan batch
		var b batch
		if next < total {
			work = p.workChan
			b = batch{start: next * p.batchSize, end: min((next+1)*p.batchSize, n)}
		}

		select {
		case work <- b:
			next++
		case res := <-p.doneChan:
			done++
			if res.err != nil {
				errs = append(errs, res.err)
			}
		}
	}

	return errors.Join(errs...)
}

// simulateBatchSafe runs simulateBatch, converting a kernel panic into an error.
func (g *Game) simulateBatchSafe(b batch, scratch *workerScratch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch [%d, %d): kernel panic: %v", b.start, b.end, r)
		}
	}()
	g.simulateBatch(b.start, b.end, scratch)
	return nil
}

// simulateBatch computes the next state of particles [i0, i1) from the snapshot.
func (g *Game) simulateBatch(i0, i1 int, scratch *workerScratch) {
	out := g.store.ReadWrite()
	radius := g.kernel.PerceptionRadius()

	for i := i0; i < i1; i++ {
		self := g.snapshot[i]

		// Query neighbors (read-only spatial index access)
		scratch.Neighbors = g.finder.QueryInto(
			scratch.Neighbors[:0],
			self.Position.X, self.Position.Y, radius, i,
		)

		out[i] = g.kernel.Step(self, scratch.Neighbors, g.snapshot)
	}
}

// stopParallelWorkers should be called when shutting down the game.
func (g *Game) stopParallelWorkers() {
	if g.parallel != nil {
		g.parallel.stopWorkers()
	}
}
