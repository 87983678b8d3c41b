package vision

import "sort"

// Orientation of an axis-aligned segment.
type Orientation int

const (
	Horizontal Orientation = iota
	Vertical
)

// Segment is an axis-aligned run of edge pixels. For horizontal segments
// Fixed is the y coordinate and Start/End span x; vertical segments swap axes.
type Segment struct {
	Orientation Orientation
	Fixed       int
	Start       int
	End         int
}

// Len returns the segment length in pixels.
func (s Segment) Len() int { return s.End - s.Start + 1 }

// extractSegments scans the edge map in bands of stride rows (and columns).
// A band position counts as an edge when any pixel across the band is one,
// so thin lines between scan lines are not missed. Runs may bridge gaps of
// up to maxGap pixels and must be at least minRun pixels long.
func extractSegments(m EdgeMap, stride, maxGap int, minRunFrac float64) []Segment {
	if stride < 1 {
		stride = 1
	}
	var segs []Segment

	minH := max(2, int(minRunFrac*float64(m.Width)))
	for y0 := 0; y0 < m.Height; y0 += stride {
		y1 := min(m.Height, y0+stride)
		hit := func(x int) bool {
			for y := y0; y < y1; y++ {
				if m.Bits[y*m.Width+x] {
					return true
				}
			}
			return false
		}
		for _, r := range runs(m.Width, hit, maxGap, minH) {
			segs = append(segs, Segment{Orientation: Horizontal, Fixed: y0 + (y1-y0)/2, Start: r[0], End: r[1]})
		}
	}

	minV := max(2, int(minRunFrac*float64(m.Height)))
	for x0 := 0; x0 < m.Width; x0 += stride {
		x1 := min(m.Width, x0+stride)
		hit := func(y int) bool {
			row := y * m.Width
			for x := x0; x < x1; x++ {
				if m.Bits[row+x] {
					return true
				}
			}
			return false
		}
		for _, r := range runs(m.Height, hit, maxGap, minV) {
			segs = append(segs, Segment{Orientation: Vertical, Fixed: x0 + (x1-x0)/2, Start: r[0], End: r[1]})
		}
	}

	return mergeSegments(segs, 2*stride, maxGap)
}

// runs returns [start,end] pairs of contiguous hits along one scan line.
func runs(n int, hit func(int) bool, maxGap, minRun int) [][2]int {
	var out [][2]int
	start, last := -1, -1
	flush := func() {
		if start >= 0 && last-start+1 >= minRun {
			out = append(out, [2]int{start, last})
		}
		start, last = -1, -1
	}
	for i := 0; i < n; i++ {
		if !hit(i) {
			if start >= 0 && i-last > maxGap {
				flush()
			}
			continue
		}
		if start < 0 {
			start = i
		}
		last = i
	}
	flush()
	return out
}

// mergeSegments joins collinear segments whose fixed coordinates are within
// fixedTol and whose spans overlap or are separated by at most maxGap.
// The output is sorted by orientation, fixed coordinate and start.
func mergeSegments(segs []Segment, fixedTol, maxGap int) []Segment {
	sort.SliceStable(segs, func(i, j int) bool {
		a, b := segs[i], segs[j]
		if a.Orientation != b.Orientation {
			return a.Orientation < b.Orientation
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.Fixed < b.Fixed
	})

	var out []Segment
	for _, s := range segs {
		merged := false
		for i := range out {
			o := &out[i]
			if o.Orientation != s.Orientation || abs(o.Fixed-s.Fixed) > fixedTol {
				continue
			}
			if s.Start > o.End+maxGap+1 || o.Start > s.End+maxGap+1 {
				continue
			}
			// Weighted by length so the merged line stays on the dominant run.
			lo, ls := o.Len(), s.Len()
			o.Fixed = (o.Fixed*lo + s.Fixed*ls) / (lo + ls)
			o.Start = min(o.Start, s.Start)
			o.End = max(o.End, s.End)
			merged = true
			break
		}
		if !merged {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Orientation != b.Orientation {
			return a.Orientation < b.Orientation
		}
		if a.Fixed != b.Fixed {
			return a.Fixed < b.Fixed
		}
		return a.Start < b.Start
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
