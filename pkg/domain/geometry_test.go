package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	base := Rect{X: 10, Y: 10, W: 5, H: 5}
	cases := []struct {
		name  string
		other Rect
		want  bool
	}{
		{"identical", base, true},
		{"inside", Rect{X: 11, Y: 11, W: 2, H: 2}, true},
		{"partial", Rect{X: 14, Y: 14, W: 10, H: 10}, true},
		{"touching right edge", Rect{X: 15, Y: 10, W: 5, H: 5}, false},
		{"touching bottom edge", Rect{X: 10, Y: 15, W: 5, H: 5}, false},
		{"touching corner", Rect{X: 15, Y: 15, W: 1, H: 1}, false},
		{"disjoint", Rect{X: 100, Y: 100, W: 1, H: 1}, false},
		{"zero width", Rect{X: 11, Y: 11, W: 0, H: 3}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(base, tc.other))
			assert.Equal(t, tc.want, Overlaps(tc.other, base), "overlap must be symmetric")
		})
	}
}

func TestOverlapsNearUint32Limit(t *testing.T) {
	a := Rect{X: math.MaxUint32 - 1, Y: 0, W: math.MaxUint32, H: 1}
	b := Rect{X: 0, Y: 0, W: 1, H: 1}
	assert.False(t, Overlaps(a, b), "far edge must not wrap around to zero")
	assert.Equal(t, uint64(math.MaxUint32-1)+math.MaxUint32, a.Right())
}

func TestIntersection(t *testing.T) {
	got, err := Intersection(Rect{X: 0, Y: 0, W: 250, H: 250}, Rect{X: 200, Y: 100, W: 100, H: 10})
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 200, Y: 100, W: 50, H: 10}, got)

	_, err = Intersection(Rect{X: 0, Y: 0, W: 5, H: 5}, Rect{X: 5, Y: 0, W: 5, H: 5})
	require.ErrorIs(t, err, ErrNoOverlap)
}

func TestContains(t *testing.T) {
	outer := Rect{X: 10, Y: 10, W: 5, H: 5}
	assert.True(t, Contains(outer, outer))
	assert.True(t, Contains(outer, Rect{X: 14, Y: 14, W: 1, H: 1}))
	assert.False(t, Contains(outer, Rect{X: 14, Y: 14, W: 2, H: 1}))
	assert.False(t, Contains(outer, Rect{X: 9, Y: 10, W: 1, H: 1}))
	assert.False(t, Contains(outer, Rect{X: 11, Y: 11, W: 0, H: 0}))
}

func TestWithinGrid(t *testing.T) {
	require.NoError(t, Rect{X: 990, Y: 990, W: 10, H: 10}.WithinGrid(1000, 1000))
	require.ErrorIs(t, Rect{X: 991, Y: 990, W: 10, H: 10}.WithinGrid(1000, 1000), ErrOutOfBounds)
	require.ErrorIs(t, Rect{X: 0, Y: 0, W: 0, H: 10}.WithinGrid(1000, 1000), ErrZeroSize)
}

func TestMoneyArithmetic(t *testing.T) {
	price, err := MulPrice(25, 20000)
	require.NoError(t, err)
	assert.Equal(t, uint64(500000), price)

	_, err = MulPrice(math.MaxUint32*uint64(math.MaxUint32), 2)
	require.ErrorIs(t, err, ErrOverflow)

	_, err = AddAmount(math.MaxUint64, 1)
	require.ErrorIs(t, err, ErrOverflow)
	assert.True(t, errors.Is(err, ErrOverflow))

	assert.Equal(t, uint64(12500), FeeFor(500000, 250))
	assert.Equal(t, uint64(0), FeeFor(500000, 0))
	assert.Equal(t, uint64(math.MaxUint64/2+1), FeeFor(math.MaxUint64, 5000), "fees round up")
	assert.Equal(t, uint64(math.MaxUint64), FeeFor(math.MaxUint64, BasisPoints))
	assert.Equal(t, uint64(1), FeeFor(25, 100))
	assert.Equal(t, uint64(1), FeeFor(1, 1))
	assert.Equal(t, uint64(0), FeeFor(0, 100))
	assert.Equal(t, uint64(100), FeeFor(100, 20000), "rates above the denominator are capped")
}
