package core

import (
	"fmt"
	"sort"
	"strings"
)

// ElementKind classifies a detected architectural element.
type ElementKind string

const (
	ElementWall    ElementKind = "wall"
	ElementWindow  ElementKind = "window"
	ElementDoor    ElementKind = "door"
	ElementCeiling ElementKind = "ceiling"
	ElementFloor   ElementKind = "floor"
	ElementFixture ElementKind = "fixture"
)

// RoomType is the inferred room category.
type RoomType string

const (
	RoomLivingRoom RoomType = "living_room"
	RoomBedroom    RoomType = "bedroom"
	RoomBathroom   RoomType = "bathroom"
	RoomHallway    RoomType = "hallway"
	RoomUnknown    RoomType = "unknown"
)

// Lighting is the coarse lighting classification of a frame.
type Lighting string

const (
	LightingNatural    Lighting = "natural"
	LightingArtificial Lighting = "artificial"
	LightingMixed      Lighting = "mixed"
)

// Condition buckets the mean element confidence.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

// Point is a 2-D pixel coordinate in the normalized frame.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Dimensions is an optional width/height pair in pixels of the normalized frame.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ArchitecturalElement is a single detection. It is immutable after creation
// and owned by the RoomAnalysis that contains it.
type ArchitecturalElement struct {
	Kind            ElementKind `json:"kind"`
	BoundaryPolygon []Point     `json:"boundary_polygon"`
	Confidence      float64     `json:"confidence"`
	// LoadBearing is never inferred by the pipeline; it stays nil unless a
	// caller supplies structural knowledge.
	LoadBearing *bool       `json:"load_bearing,omitempty"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
}

// RoomDimensions are the estimated metric dimensions of the visible room plane.
type RoomDimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Area   float64 `json:"area"`
}

// Frame records the size of the normalized image the polygons refer to.
type Frame struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RoomAnalysis is the structured output of the vision pipeline. It is created
// once per analyzed image and never mutated; a new image supersedes it.
type RoomAnalysis struct {
	Elements             []ArchitecturalElement `json:"elements"`
	RoomType             RoomType               `json:"room_type"`
	Dimensions           RoomDimensions         `json:"dimensions"`
	Lighting             Lighting               `json:"lighting"`
	Condition            Condition              `json:"condition"`
	OverallConfidence    float64                `json:"overall_confidence"`
	ProcessingDurationMs int64                  `json:"processing_duration_ms"`
	Frame                Frame                  `json:"frame"`
	// Fallback marks the minimal placeholder analysis returned when decoding
	// or detection failed.
	Fallback bool `json:"fallback,omitempty"`
}

// Count returns the number of elements of the given kind.
func (a RoomAnalysis) Count(kind ElementKind) int {
	n := 0
	for _, e := range a.Elements {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Kinds returns the distinct element kinds present, sorted.
func (a RoomAnalysis) Kinds() []ElementKind {
	seen := map[ElementKind]bool{}
	for _, e := range a.Elements {
		seen[e.Kind] = true
	}
	out := make([]ElementKind, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy safe for handing to other layers.
func (a RoomAnalysis) Clone() RoomAnalysis {
	c := a
	c.Elements = make([]ArchitecturalElement, len(a.Elements))
	for i, e := range a.Elements {
		ce := e
		ce.BoundaryPolygon = append([]Point(nil), e.BoundaryPolygon...)
		if e.LoadBearing != nil {
			v := *e.LoadBearing
			ce.LoadBearing = &v
		}
		if e.Dimensions != nil {
			d := *e.Dimensions
			ce.Dimensions = &d
		}
		c.Elements[i] = ce
	}
	return c
}

// Summary renders a deterministic plain-text description used as agent context.
func (a RoomAnalysis) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room analysis: type=%s, lighting=%s, condition=%s, confidence=%.2f\n",
		a.RoomType, a.Lighting, a.Condition, a.OverallConfidence)
	fmt.Fprintf(&b, "Estimated dimensions: %.1fm x %.1fm (%.1f m2 visible)\n",
		a.Dimensions.Width, a.Dimensions.Height, a.Dimensions.Area)
	kinds := a.Kinds()
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%d %s", a.Count(k), k))
	}
	fmt.Fprintf(&b, "Detected elements: %s", strings.Join(parts, ", "))
	if a.Fallback {
		b.WriteString("\nNote: detection was inconclusive; treat these results as a placeholder.")
	}
	return b.String()
}
