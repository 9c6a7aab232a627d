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

var (
	mu    sync.Mutex
	mono  io.Reader
	epoch = time.Unix(0, 0)
)

func init() {
	// ulid.Monotonic keeps IDs generated within the same millisecond
	// lexicographically increasing.
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string stamped with the wall clock.
func New() string {
	return At(time.Now())
}

// At returns a ULID stamped with t. The simulation stamps ledger entries,
// orders and positions with the simulated date so IDs sort in replay order.
// Dates before the unix epoch share timestamp 0; the monotonic entropy still
// orders them by generation.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(timestamp(t), mono)
	if err != nil {
		// Only possible when entropy fails.
		panic(err)
	}
	return id.String()
}

func timestamp(t time.Time) uint64 {
	if t.Before(epoch) {
		return 0
	}
	if t.After(ulid.Time(ulid.MaxTime())) {
		return ulid.MaxTime()
	}
	return ulid.Timestamp(t)
}
