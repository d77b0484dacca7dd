/*
Package randx provides cryptographically secure random number generation behind a
swappable interface.

The Rand interface is the sole source of randomness for gameplay (role shuffling)
so that tests can substitute a deterministic sequence. The package also provides
helpers for generating opaque identifiers.
*/
package randx

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// Rand is the randomness source consumed by the game core.
// Production code uses Crypto; tests substitute a seeded mock.
type Rand interface {
	// Intn returns a random int in [0, n).
	Intn(n int) int
}

// Crypto implements Rand using crypto/rand.
type Crypto struct{}

// New returns a new crypto/rand backed randomness source.
func New() *Crypto {
	return &Crypto{}
}

// Intn returns a cryptographically random int in [0, n).
func (r *Crypto) Intn(n int) int {
	if n <= 0 {
		return 0
	}

	result, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		return 0
	}

	return int(result.Int64())
}

// Shuffle performs a uniform Fisher-Yates permutation of n elements using r,
// calling swap for each exchange.
func Shuffle(r Rand, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}

// RoomID generates a UUID v4 string to serve as an opaque room identifier.
func RoomID() string {
	return uuid.New().String()
}

// Mock implements Rand with a queue of predetermined results, for tests.
type Mock struct {
	// IntnResults is a queue of results to return from Intn.
	IntnResults []int
	intnIndex   int
}

var _ Rand = (*Mock)(nil)

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{}
}

// Intn returns the next queued result modulo n, or 0 if none remain.
func (r *Mock) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result % n
}

// QueueIntn adds values to the Intn result queue.
func (r *Mock) QueueIntn(values ...int) {
	r.IntnResults = append(r.IntnResults, values...)
}

// Reset clears all queued results.
func (r *Mock) Reset() {
	r.IntnResults = nil
	r.intnIndex = 0
}

var _ Rand = (*Crypto)(nil)
