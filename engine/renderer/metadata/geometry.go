package metadata

/**
 * @brief A 2D point in pixels. It may be negative (left of or above the
 * top-left corner of the target).
 */
type Point struct {
	X int16
	Y int16
}

func (p Point) Add(o Offset) Point {
	return Point{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Point) Sub(other Point) Offset {
	return Offset{X: p.X - other.X, Y: p.Y - other.Y}
}

// Within reports whether the point lies inside rect.
func (p Point) Within(rect Rect) bool {
	return rect.Contains(p)
}

/** @brief A 2D displacement in pixels. */
type Offset struct {
	X int16
	Y int16
}

/** @brief The size of a 2D rectangle. It is never negative. */
type Extent struct {
	Width  int16
	Height int16
}

func (e Extent) Area() int {
	if e.Width <= 0 || e.Height <= 0 {
		return 0
	}
	return int(e.Width) * int(e.Height)
}

// Rect returns the rectangle anchored at the origin with this extent.
func (e Extent) Rect() Rect {
	return Rect{Right: e.Width, Bottom: e.Height}
}

/** @brief An axis aligned rectangle. Right and bottom are exclusive for rasterization. */
type Rect struct {
	Left   int16
	Top    int16
	Right  int16
	Bottom int16
}

// NewRect builds a rect from its top-left corner and size.
func NewRect(x, y, width, height int16) Rect {
	return Rect{Left: x, Top: y, Right: x + width, Bottom: y + height}
}

func (r Rect) TopLeft() Point {
	return Point{X: r.Left, Y: r.Top}
}

func (r Rect) TopRight() Point {
	return Point{X: r.Right, Y: r.Top}
}

func (r Rect) BottomRight() Point {
	return Point{X: r.Right, Y: r.Bottom}
}

func (r Rect) BottomLeft() Point {
	return Point{X: r.Left, Y: r.Bottom}
}

func (r Rect) Width() int16 {
	return r.Right - r.Left
}

func (r Rect) Height() int16 {
	return r.Bottom - r.Top
}

func (r Rect) Extent() Extent {
	return Extent{Width: r.Width(), Height: r.Height()}
}

func (r Rect) IsEmpty() bool {
	return r.Right <= r.Left || r.Bottom <= r.Top
}

// Contains follows the hit-testing convention of the UI: left and top are
// inclusive, right is exclusive and bottom is inclusive.
func (r Rect) Contains(p Point) bool {
	return r.Left <= p.X && p.X < r.Right && r.Top <= p.Y && p.Y <= r.Bottom
}

// Intersect returns the overlap of two rects, or an empty rect.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
	if out.IsEmpty() {
		return Rect{}
	}
	return out
}

func (r Rect) Add(o Offset) Rect {
	return Rect{Left: r.Left + o.X, Top: r.Top + o.Y, Right: r.Right + o.X, Bottom: r.Bottom + o.Y}
}
