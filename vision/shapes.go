package vision

import (
	"math"

	"github.com/hupe1980/archmesh/core"
)

// Box is an inclusive pixel bounding box.
type Box struct {
	MinX, MinY, MaxX, MaxY int
}

// W returns the box width.
func (b Box) W() int { return b.MaxX - b.MinX + 1 }

// H returns the box height.
func (b Box) H() int { return b.MaxY - b.MinY + 1 }

// containsSegment reports whether the segment lies on or within the box expanded by pad.
func (b Box) containsSegment(s Segment, pad int) bool {
	if s.Orientation == Horizontal {
		return s.Fixed >= b.MinY-pad && s.Fixed <= b.MaxY+pad &&
			s.Start >= b.MinX-pad && s.End <= b.MaxX+pad
	}
	return s.Fixed >= b.MinX-pad && s.Fixed <= b.MaxX+pad &&
		s.Start >= b.MinY-pad && s.End <= b.MaxY+pad
}

func (b Box) polygon() []core.Point {
	return []core.Point{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
	}
}

// opening is a rectangular candidate found by the bounding-box heuristic.
type opening struct {
	box      Box
	coverage float64
	kind     core.ElementKind
}

// components labels 8-connected edge regions and returns their bounding boxes
// in scan order of their first pixel.
func components(m EdgeMap) []Box {
	labels := make([]bool, len(m.Bits))
	var boxes []Box
	stack := make([]int, 0, 1024)
	for start, isEdge := range m.Bits {
		if !isEdge || labels[start] {
			continue
		}
		b := Box{MinX: m.Width, MinY: m.Height, MaxX: -1, MaxY: -1}
		labels[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%m.Width, i/m.Width
			b.MinX, b.MaxX = min(b.MinX, x), max(b.MaxX, x)
			b.MinY, b.MaxY = min(b.MinY, y), max(b.MaxY, y)
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if (dx == 0 && dy == 0) || !m.At(nx, ny) {
						continue
					}
					j := ny*m.Width + nx
					if !labels[j] {
						labels[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		boxes = append(boxes, b)
	}
	return boxes
}

// borderCoverage is the fraction of the box perimeter backed by an edge pixel
// on the perimeter or one pixel inside it.
func borderCoverage(m EdgeMap, b Box) float64 {
	total, hit := 0, 0
	check := func(x, y, ix, iy int) {
		total++
		if m.At(x, y) || m.At(ix, iy) {
			hit++
		}
	}
	for x := b.MinX; x <= b.MaxX; x++ {
		check(x, b.MinY, x, b.MinY+1)
		check(x, b.MaxY, x, b.MaxY-1)
	}
	for y := b.MinY + 1; y < b.MaxY; y++ {
		check(b.MinX, y, b.MinX+1, y)
		check(b.MaxX, y, b.MaxX-1, y)
	}
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}

// findOpenings keeps edge components whose bounding box is large enough, not
// frame sized, and mostly outlined. Taller-than-wide boxes beyond doorRatio
// are doors, the rest windows.
func findOpenings(m EdgeMap, p Params) []opening {
	minSide := max(4, int(p.MinOpeningFraction*float64(min(m.Width, m.Height))))
	frameArea := float64(m.Width * m.Height)
	var out []opening
	for _, b := range components(m) {
		if b.W() < minSide || b.H() < minSide {
			continue
		}
		if float64(b.W()*b.H()) > p.MaxOpeningArea*frameArea {
			continue
		}
		cov := borderCoverage(m, b)
		if cov < p.MinBorderCoverage {
			continue
		}
		kind := core.ElementWindow
		if float64(b.H())/float64(b.W()) >= p.DoorAspectRatio {
			kind = core.ElementDoor
		}
		out = append(out, opening{box: b, coverage: cov, kind: kind})
	}
	return out
}

// findWalls promotes long segments that are not part of an opening outline.
func findWalls(segs []Segment, openings []opening, w, h int, p Params) []core.ArchitecturalElement {
	var walls []core.ArchitecturalElement
	for _, s := range segs {
		dim := w
		if s.Orientation == Vertical {
			dim = h
		}
		frac := float64(s.Len()) / float64(dim)
		if frac < p.WallFraction {
			continue
		}
		onOpening := false
		for _, o := range openings {
			if o.box.containsSegment(s, 2*p.Stride) {
				onOpening = true
				break
			}
		}
		if onOpening {
			continue
		}
		walls = append(walls, core.ArchitecturalElement{
			Kind:            core.ElementWall,
			BoundaryPolygon: segmentPolygon(s, w, h),
			Confidence:      round3(math.Min(0.9, 0.5+0.4*frac)),
		})
	}
	return walls
}

func segmentPolygon(s Segment, w, h int) []core.Point {
	if s.Orientation == Horizontal {
		y0, y1 := max(0, s.Fixed-2), min(h-1, s.Fixed+2)
		return Box{MinX: s.Start, MinY: y0, MaxX: s.End, MaxY: y1}.polygon()
	}
	x0, x1 := max(0, s.Fixed-2), min(w-1, s.Fixed+2)
	return Box{MinX: x0, MinY: s.Start, MaxX: x1, MaxY: s.End}.polygon()
}

// planes emits the fixed top and bottom bands as ceiling and floor.
func planes(w, h int, p Params) []core.ArchitecturalElement {
	band := max(1, int(p.PlaneBandFraction*float64(h)))
	ceiling := Box{MinX: 0, MinY: 0, MaxX: w - 1, MaxY: band - 1}
	floor := Box{MinX: 0, MinY: h - band, MaxX: w - 1, MaxY: h - 1}
	return []core.ArchitecturalElement{
		{Kind: core.ElementCeiling, BoundaryPolygon: ceiling.polygon(), Confidence: p.PlaneConfidence},
		{Kind: core.ElementFloor, BoundaryPolygon: floor.polygon(), Confidence: p.PlaneConfidence},
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
