// Package sampling chooses which frames of a video are decoded for a scan.
package sampling

import "math"

// ComputeSampleIndices returns the zero-based frame indices to decode for a
// video of totalFrames frames when targetCount samples are requested.
//
// When the video has no more frames than requested, every frame is returned.
// Otherwise targetCount indices are spread evenly over [0, totalFrames-2] and
// rounded to the nearest frame. The last frame is kept out of the spacing
// endpoint because some containers report one frame more than they can decode.
//
// The result is strictly increasing and never contains an index >= totalFrames.
func ComputeSampleIndices(totalFrames, targetCount int) []int {
	if totalFrames <= 0 || targetCount < 1 {
		return []int{}
	}

	if totalFrames <= targetCount {
		indices := make([]int, totalFrames)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	last := float64(totalFrames - 2)
	if targetCount == 1 {
		return []int{0}
	}

	step := last / float64(targetCount-1)
	indices := make([]int, targetCount)
	for i := range indices {
		indices[i] = int(math.Round(float64(i) * step))
	}
	// Guard the endpoint against float drift.
	indices[targetCount-1] = totalFrames - 2
	return indices
}
