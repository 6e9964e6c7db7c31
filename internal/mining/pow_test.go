package mining

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stridePrimitive accepts any nonce that is a multiple of the difficulty,
// which guarantees a solution exists within a small search window.
type stridePrimitive struct {
	attempts atomic.Int64
}

func (p *stridePrimitive) Attempt(challenge [32]byte, data []byte, nonce uint64, difficulty uint64) ([]byte, bool) {
	p.attempts.Add(1)
	if difficulty == 0 {
		return nil, false
	}
	if nonce%difficulty == 0 && nonce != 0 {
		sol := make([]byte, 8)
		for i := range sol {
			sol[i] = byte(nonce >> (8 * i))
		}
		return sol, true
	}
	return nil, false
}

func (p *stridePrimitive) Verify(challenge [32]byte, data []byte, sol []byte, difficulty uint64) bool {
	return len(sol) == 8
}

func TestRaceSolveFindsSolution(t *testing.T) {
	prim := &stridePrimitive{}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sol, ok := RaceSolve(ctx, prim, [32]byte{1}, []byte("segment"), 7, 4)
	require.True(t, ok)
	require.Len(t, sol, 8)
	require.True(t, prim.Verify([32]byte{1}, nil, sol, 7))
}

// neverSolver never finds a solution, exercising the ctx-deadline abandonment path.
type neverSolver struct{}

func (neverSolver) Attempt([32]byte, []byte, uint64, uint64) ([]byte, bool) { return nil, false }
func (neverSolver) Verify([32]byte, []byte, []byte, uint64) bool           { return false }

func TestRaceSolveAbandonsOnContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, ok := RaceSolve(ctx, neverSolver{}, [32]byte{}, nil, 1<<62, 2)
	require.False(t, ok)
}
