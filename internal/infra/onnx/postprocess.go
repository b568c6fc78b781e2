package onnx

import (
	"fmt"
	"sort"
)

// MaxDetections caps the detections kept per frame.
const MaxDetections = 300

// Candidate is a detection in model input coordinates.
type Candidate struct {
	ClassID int
	Score   float32
	X1, Y1  float32
	X2, Y2  float32
}

func (c Candidate) area() float32 {
	return max(c.X2-c.X1, 0) * max(c.Y2-c.Y1, 0)
}

// DecodeOutput reads a YOLOv8 head of shape [1, 4+classes, anchors]. Rows 0-3
// hold the box centre and size, the remaining rows the per-class scores. Only
// anchors whose best class score is at least threshold are returned.
func DecodeOutput(data []float32, shape []int64, threshold float32) ([]Candidate, error) {
	if len(shape) != 3 || shape[0] != 1 || shape[1] <= 4 || shape[2] <= 0 {
		return nil, fmt.Errorf("unexpected output shape %v", shape)
	}
	rows, anchors := int(shape[1]), int(shape[2])
	if len(data) != rows*anchors {
		return nil, fmt.Errorf("output has %d values, shape %v needs %d", len(data), shape, rows*anchors)
	}

	var out []Candidate
	for j := 0; j < anchors; j++ {
		best, bestScore := -1, float32(0)
		for c := 4; c < rows; c++ {
			if s := data[c*anchors+j]; best < 0 || s > bestScore {
				best, bestScore = c-4, s
			}
		}
		if bestScore < threshold {
			continue
		}

		cx, cy := data[j], data[anchors+j]
		w, h := data[2*anchors+j], data[3*anchors+j]
		out = append(out, Candidate{
			ClassID: best,
			Score:   bestScore,
			X1:      cx - w/2,
			Y1:      cy - h/2,
			X2:      cx + w/2,
			Y2:      cy + h/2,
		})
	}
	return out, nil
}

// IoU is the intersection over union of two boxes.
func IoU(a, b Candidate) float32 {
	ix := min(a.X2, b.X2) - max(a.X1, b.X1)
	iy := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := ix * iy
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS runs greedy per-class non-maximum suppression. Candidates are visited by
// descending score; ties keep input order so the result is deterministic.
func NMS(cands []Candidate, iouThreshold float32, maxDet int) []Candidate {
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return cands[order[i]].Score > cands[order[j]].Score
	})

	kept := make([]Candidate, 0, min(len(cands), maxDet))
	for _, idx := range order {
		if len(kept) >= maxDet {
			break
		}
		c := cands[idx]
		suppressed := false
		for _, k := range kept {
			if k.ClassID == c.ClassID && IoU(k, c) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, c)
		}
	}
	return kept
}
