package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimelineCarryForward(t *testing.T) {
	t.Parallel()

	var tl Timeline[float64]
	tl.Set(Date(2024, time.January, 3), 1.10)
	tl.Set(Date(2024, time.January, 5), 1.12)

	_, ok := tl.At(Date(2024, time.January, 2))
	assert.False(t, ok, "nothing before the first entry")

	v, ok := tl.At(Date(2024, time.January, 4))
	assert.True(t, ok)
	assert.Equal(t, 1.10, v)

	v, ok = tl.At(Date(2024, time.January, 9))
	assert.True(t, ok)
	assert.Equal(t, 1.12, v)

	_, ok = tl.Exact(Date(2024, time.January, 4))
	assert.False(t, ok)

	v, d, ok := tl.Before(Date(2024, time.January, 5))
	assert.True(t, ok)
	assert.Equal(t, 1.10, v)
	assert.Equal(t, Date(2024, time.January, 3), d)
}

func TestTimelineSetReplacesAndInserts(t *testing.T) {
	t.Parallel()

	var tl Timeline[int]
	tl.Set(Date(2024, time.February, 5), 5)
	tl.Set(Date(2024, time.February, 1), 1)
	tl.Set(Date(2024, time.February, 3), 3)
	tl.Set(Date(2024, time.February, 3), 33)

	var got []int
	tl.Each(func(_ time.Time, v int) { got = append(got, v) })
	assert.Equal(t, []int{1, 33, 5}, got)
	assert.Equal(t, 3, tl.Len())

	d, v, ok := tl.Last()
	assert.True(t, ok)
	assert.Equal(t, Date(2024, time.February, 5), d)
	assert.Equal(t, 5, v)
}
