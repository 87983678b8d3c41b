package vision

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/archmesh/core"
)

// inferRoomType is a function of window and door counts only.
func inferRoomType(windows, doors int) core.RoomType {
	switch {
	case windows >= 2 && doors <= 1:
		return core.RoomLivingRoom
	case windows == 1 && doors == 1:
		return core.RoomBedroom
	case windows == 0 && doors == 1:
		return core.RoomBathroom
	case doors >= 2:
		return core.RoomHallway
	default:
		return core.RoomUnknown
	}
}

// colorStats returns mean luminance and warmth, the mean red minus blue
// channel difference, both normalized to [0,1] and [-1,1].
func colorStats(img Image, lum []float64) (brightness, warmth float64) {
	n := img.Width * img.Height
	if n == 0 {
		return 0, 0
	}
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = (float64(img.Pix[4*i]) - float64(img.Pix[4*i+2])) / 255
	}
	return stat.Mean(lum, nil), stat.Mean(diff, nil)
}

func classifyLighting(brightness, warmth float64, p Params) core.Lighting {
	switch {
	case brightness >= p.NaturalBrightness && warmth <= p.NaturalMaxWarmth:
		return core.LightingNatural
	case warmth > p.ArtificialWarmth || brightness < p.ArtificialMaxBrightness:
		return core.LightingArtificial
	default:
		return core.LightingMixed
	}
}

func meanConfidence(elements []core.ArchitecturalElement) float64 {
	if len(elements) == 0 {
		return 0
	}
	c := make([]float64, len(elements))
	for i, e := range elements {
		c[i] = e.Confidence
	}
	return stat.Mean(c, nil)
}

// classifyCondition buckets the mean element confidence.
func classifyCondition(mean float64) core.Condition {
	switch {
	case mean > 0.8:
		return core.ConditionExcellent
	case mean > 0.6:
		return core.ConditionGood
	case mean > 0.4:
		return core.ConditionFair
	default:
		return core.ConditionPoor
	}
}

// aggregateConfidence rewards variety: mean confidence plus a fixed boost per
// distinct element kind, capped.
func aggregateConfidence(elements []core.ArchitecturalElement, p Params) float64 {
	kinds := make(map[core.ElementKind]struct{})
	for _, e := range elements {
		kinds[e.Kind] = struct{}{}
	}
	v := meanConfidence(elements) + p.KindBoost*float64(len(kinds))
	return round3(math.Min(p.MaxOverallConfidence, v))
}

// metresPerPixel anchors the scale on the tallest door (standard height) or,
// without a door, on an assumed frame width.
func metresPerPixel(openings []opening, frameWidth int, p Params) float64 {
	doorPx := 0
	for _, o := range openings {
		if o.kind == core.ElementDoor && o.box.H() > doorPx {
			doorPx = o.box.H()
		}
	}
	if doorPx > 0 {
		return p.DoorHeightMetres / float64(doorPx)
	}
	return p.AssumedFrameWidthMetres / float64(frameWidth)
}

func roomDimensions(w, h int, scale float64) core.RoomDimensions {
	width := round2(float64(w) * scale)
	height := round2(float64(h) * scale)
	return core.RoomDimensions{Width: width, Height: height, Area: round2(width * height)}
}
