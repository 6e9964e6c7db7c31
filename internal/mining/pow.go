// Package mining implements C6: the per-block challenge resolution,
// proof-of-access/proof-of-work assembly, and submission loop.
package mining

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// PowPrimitive wraps the single-nonce evaluation and verification halves of
// the externally specified pow_solve/pow_verify memory-hard functions (spec
// §1/§4.6 Non-goals). This package never reimplements the hash itself; it
// only orchestrates concurrent nonce search around Attempt.
type PowPrimitive interface {
	// Attempt evaluates one nonce, returning a solution iff it meets difficulty.
	Attempt(challenge [32]byte, data []byte, nonce uint64, difficulty uint64) (solution []byte, ok bool)
	// Verify re-checks a previously found solution.
	Verify(challenge [32]byte, data []byte, solution []byte, difficulty uint64) bool
}

// RaceSolve runs workers goroutines racing on disjoint nonce strides; the
// first solution meeting difficulty signals the rest to stop via a shared
// atomic flag, and every worker is joined before returning.
func RaceSolve(ctx context.Context, prim PowPrimitive, challenge [32]byte, data []byte, difficulty uint64, workers int) ([]byte, bool) {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	var stop atomic.Bool
	resultCh := make(chan []byte, 1)
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(stride uint64, start uint64) {
			defer wg.Done()
			nonce := start
			for !stop.Load() {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if sol, ok := prim.Attempt(challenge, data, nonce, difficulty); ok {
					if stop.CompareAndSwap(false, true) {
						resultCh <- sol
					}
					return
				}
				nonce += stride
			}
		}(uint64(workers), uint64(w))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case sol := <-resultCh:
		stop.Store(true)
		<-done
		return sol, true
	case <-ctx.Done():
		stop.Store(true)
		<-done
		return nil, false
	case <-done:
		return nil, false
	}
}
