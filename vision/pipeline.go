package vision

import (
	"github.com/hupe1980/archmesh/core"
)

// Params are the fixed pipeline parameters. Identical params and pixels
// always produce identical analyses.
type Params struct {
	// MaxDimension bounds the longest side after normalization.
	MaxDimension int
	// EdgeThreshold is the minimum Sobel magnitude on [0,1] luminance.
	EdgeThreshold float64
	// Stride is the scan band height/width used for line extraction.
	Stride int
	// MaxGap is the largest gap bridged inside one run.
	MaxGap int
	// MinRunFraction is the minimum run length relative to the frame side.
	MinRunFraction float64
	// WallFraction is the minimum wall length relative to the frame side.
	WallFraction float64

	MinOpeningFraction float64
	MaxOpeningArea     float64
	MinBorderCoverage  float64
	DoorAspectRatio    float64

	PlaneBandFraction float64
	PlaneConfidence   float64

	NaturalBrightness       float64
	NaturalMaxWarmth        float64
	ArtificialWarmth        float64
	ArtificialMaxBrightness float64

	KindBoost            float64
	MaxOverallConfidence float64
	FallbackConfidence   float64

	DoorHeightMetres        float64
	AssumedFrameWidthMetres float64
}

// DefaultParams returns the standard pipeline configuration.
func DefaultParams() Params {
	return Params{
		MaxDimension:   1024,
		EdgeThreshold:  0.35,
		Stride:         4,
		MaxGap:         2,
		MinRunFraction: 0.1,
		WallFraction:   0.4,

		MinOpeningFraction: 0.05,
		MaxOpeningArea:     0.5,
		MinBorderCoverage:  0.6,
		DoorAspectRatio:    1.8,

		PlaneBandFraction: 0.15,
		PlaneConfidence:   0.55,

		NaturalBrightness:       0.55,
		NaturalMaxWarmth:        0.04,
		ArtificialWarmth:        0.08,
		ArtificialMaxBrightness: 0.35,

		KindBoost:            0.05,
		MaxOverallConfidence: 0.95,
		FallbackConfidence:   0.2,

		DoorHeightMetres:        2.1,
		AssumedFrameWidthMetres: 4.0,
	}
}

// Run executes every stage on img. It never fails: invalid images and
// images without detections yield Fallback analyses. ProcessingDurationMs is
// left zero; Analyzer measures it.
func Run(img Image, p Params) core.RoomAnalysis {
	if err := img.Validate(); err != nil {
		return fallback(core.Frame{}, core.LightingMixed, p)
	}

	img = normalize(img, p.MaxDimension)
	w, h := img.Width, img.Height
	frame := core.Frame{Width: w, Height: h}

	lum := luminance(img)
	brightness, warmth := colorStats(img, lum)
	lighting := classifyLighting(brightness, warmth, p)

	edges := detectEdges(w, h, lum, p.EdgeThreshold)
	segs := extractSegments(edges, p.Stride, p.MaxGap, p.MinRunFraction)
	openings := findOpenings(edges, p)
	walls := findWalls(segs, openings, w, h, p)

	if len(walls) == 0 && len(openings) == 0 {
		return fallback(frame, lighting, p)
	}

	scale := metresPerPixel(openings, w, p)
	elements := make([]core.ArchitecturalElement, 0, len(walls)+len(openings)+2)
	elements = append(elements, walls...)
	windows, doors := 0, 0
	for _, o := range openings {
		if o.kind == core.ElementDoor {
			doors++
		} else {
			windows++
		}
		elements = append(elements, core.ArchitecturalElement{
			Kind:            o.kind,
			BoundaryPolygon: o.box.polygon(),
			Confidence:      round3(min(0.9, 0.4+0.5*o.coverage)),
			Dimensions: &core.Dimensions{
				Width:  round2(float64(o.box.W()) * scale),
				Height: round2(float64(o.box.H()) * scale),
			},
		})
	}
	elements = append(elements, planes(w, h, p)...)

	return core.RoomAnalysis{
		Elements:          elements,
		RoomType:          inferRoomType(windows, doors),
		Dimensions:        roomDimensions(w, h, scale),
		Lighting:          lighting,
		Condition:         classifyCondition(meanConfidence(elements)),
		OverallConfidence: aggregateConfidence(elements, p),
		Frame:             frame,
	}
}

// fallback is the minimal structurally valid analysis: one low-confidence
// placeholder wall spanning the frame.
func fallback(frame core.Frame, lighting core.Lighting, p Params) core.RoomAnalysis {
	w, h := max(1, frame.Width), max(1, frame.Height)
	wall := core.ArchitecturalElement{
		Kind:            core.ElementWall,
		BoundaryPolygon: Box{MinX: 0, MinY: 0, MaxX: w - 1, MaxY: h - 1}.polygon(),
		Confidence:      p.FallbackConfidence,
	}
	dims := core.RoomDimensions{}
	if frame.Width > 0 {
		dims = roomDimensions(frame.Width, frame.Height, p.AssumedFrameWidthMetres/float64(frame.Width))
	}
	return core.RoomAnalysis{
		Elements:          []core.ArchitecturalElement{wall},
		RoomType:          core.RoomUnknown,
		Dimensions:        dims,
		Lighting:          lighting,
		Condition:         classifyCondition(p.FallbackConfidence),
		OverallConfidence: p.FallbackConfidence,
		Frame:             frame,
		Fallback:          true,
	}
}
