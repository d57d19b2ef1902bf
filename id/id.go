package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out time-sortable identifiers for orders, positions,
// trades and backtest runs.
type Generator interface {
	New() string
}

// ULIDs is a Generator backed by ulid.Monotonic entropy, so IDs generated
// within the same millisecond stay lexicographically increasing.
type ULIDs struct {
	mu   sync.Mutex
	mono io.Reader
	now  func() time.Time
}

// NewULIDs seeds the entropy source from crypto/rand.
func NewULIDs() *ULIDs {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ULIDs{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:  time.Now,
	}
}

// NewSeeded returns a reproducible generator: the same seed and start time
// always yield the same sequence. Each call advances the embedded clock by
// one millisecond.
func NewSeeded(seed int64, start time.Time) *ULIDs {
	t := start
	return &ULIDs{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now: func() time.Time {
			t = t.Add(time.Millisecond)
			return t
		},
	}
}

func (g *ULIDs) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.mono)
	if err != nil {
		// Only possible if the clock goes backwards past the monotonic window.
		panic(err)
	}
	return id.String()
}

var std = NewULIDs()

// New returns a ULID string from the process-wide generator.
func New() string {
	return std.New()
}

// Default exposes the process-wide generator as a Generator.
func Default() Generator {
	return std
}
