package domain

import (
	"fmt"
	"math/bits"
)

// Rect is an axis-aligned rectangle on the integer grid. The covered cells
// are [X, X+W) x [Y, Y+H). Edges are computed in uint64 so they cannot wrap.
type Rect struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
	W uint32 `json:"w"`
	H uint32 `json:"h"`
}

// Right returns the exclusive right edge.
func (r Rect) Right() uint64 { return uint64(r.X) + uint64(r.W) }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() uint64 { return uint64(r.Y) + uint64(r.H) }

// Area returns W*H. The product of two uint32 values always fits in uint64.
func (r Rect) Area() uint64 { return uint64(r.W) * uint64(r.H) }

// Empty reports whether the rectangle covers no cells.
func (r Rect) Empty() bool { return r.W == 0 || r.H == 0 }

func (r Rect) String() string {
	return fmt.Sprintf("{%d,%d %dx%d}", r.X, r.Y, r.W, r.H)
}

// WithinGrid checks that the rectangle is non-empty and lies inside a
// width x height grid anchored at the origin.
func (r Rect) WithinGrid(width, height uint32) error {
	if r.Empty() {
		return fmt.Errorf("%w: %s", ErrZeroSize, r)
	}
	if r.Right() > uint64(width) || r.Bottom() > uint64(height) {
		return fmt.Errorf("%w: %s exceeds %dx%d grid", ErrOutOfBounds, r, width, height)
	}
	return nil
}

// Overlaps reports whether a and b share positive area. Touching edges do not
// count, and an empty rectangle overlaps nothing.
func Overlaps(a, b Rect) bool {
	if a.Empty() || b.Empty() {
		return false
	}
	return uint64(a.X) < b.Right() && a.Right() > uint64(b.X) &&
		uint64(a.Y) < b.Bottom() && a.Bottom() > uint64(b.Y)
}

// Intersection returns the maximal rectangle contained in both a and b.
func Intersection(a, b Rect) (Rect, error) {
	if !Overlaps(a, b) {
		return Rect{}, fmt.Errorf("%w: %s and %s", ErrNoOverlap, a, b)
	}
	x := max(a.X, b.X)
	y := max(a.Y, b.Y)
	right := min(a.Right(), b.Right())
	bottom := min(a.Bottom(), b.Bottom())
	// right > x and bottom > y hold because the rectangles overlap, and both
	// differences are bounded by the narrower input's W/H.
	return Rect{X: x, Y: y, W: uint32(right - uint64(x)), H: uint32(bottom - uint64(y))}, nil
}

// Contains reports whether inner lies entirely inside outer.
func Contains(outer, inner Rect) bool {
	if inner.Empty() {
		return false
	}
	return inner.X >= outer.X && inner.Y >= outer.Y &&
		inner.Right() <= outer.Right() && inner.Bottom() <= outer.Bottom()
}

// BasisPoints is the denominator for fee rates.
const BasisPoints = 10_000

// MulPrice returns area*pricePerUnit or ErrOverflow.
func MulPrice(area, pricePerUnit uint64) (uint64, error) {
	hi, lo := bits.Mul64(area, pricePerUnit)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrOverflow, area, pricePerUnit)
	}
	return lo, nil
}

// AddAmount returns a+b or ErrOverflow.
func AddAmount(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// FeeFor returns ceil(total*bps/BasisPoints), the minimum fee owed on total.
// Any nonzero rate on a nonzero total owes at least one unit. The product is
// held in 128 bits and bps is capped at BasisPoints, so the quotient always
// fits.
func FeeFor(total uint64, bps uint32) uint64 {
	if bps > BasisPoints {
		bps = BasisPoints
	}
	hi, lo := bits.Mul64(total, uint64(bps))
	lo, carry := bits.Add64(lo, BasisPoints-1, 0)
	q, _ := bits.Div64(hi+carry, lo, BasisPoints)
	return q
}
