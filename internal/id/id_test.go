package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtSortsByDate(t *testing.T) {
	t.Parallel()

	d1 := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)

	a := At(d1)
	b := At(d1)
	c := At(d2)

	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

// Not parallel: IDs sharing timestamp 0 only sort by generation when no other
// timestamp is drawn in between.
func TestAtBeforeEpoch(t *testing.T) {
	d1 := time.Date(1969, 12, 30, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC)

	var a, b, c string
	require.NotPanics(t, func() {
		a = At(d1)
		b = At(d2)
		c = At(time.Unix(0, 0).Add(24 * time.Hour))
	})
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestTimestampClamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint64(0), timestamp(time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, uint64(86400000), timestamp(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC)))
}
