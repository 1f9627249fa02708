package pose

import (
	"github.com/verte-zerg/repjudge/internal/geometry"
)

// MediaPipeLandmarkCount is the size of a MediaPipe Pose landmark set.
const MediaPipeLandmarkCount = 33

// DefaultMinVisibility matches the detection confidence the pose model is
// usually run with.
const DefaultMinVisibility = 0.5

// mediaPipeIndex maps tracked joints to MediaPipe Pose landmark indices per side.
var mediaPipeIndex = map[Side][jointCount]int{
	SideLeft: {
		Shoulder: 11,
		Elbow:    13,
		Wrist:    15,
		Hip:      23,
		Knee:     25,
		Ankle:    27,
	},
	SideRight: {
		Shoulder: 12,
		Elbow:    14,
		Wrist:    16,
		Hip:      24,
		Knee:     26,
		Ankle:    28,
	},
}

// Landmark is one keypoint as emitted by the pose model.
type Landmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Visibility *float64 `json:"visibility,omitempty"`
}

func (l Landmark) visible(minVisibility float64) bool {
	if l.Visibility == nil {
		return true
	}
	return *l.Visibility >= minVisibility
}

// Extractor turns decoded frames into snapshots.
type Extractor struct {
	Side          Side
	MinVisibility float64
}

// Snapshot selects the tracked joints from a frame. Landmarks below the
// visibility threshold, or beyond the end of a short landmark list, are left
// out of the snapshot.
func (e Extractor) Snapshot(f Frame) Snapshot {
	points := make(map[Joint]geometry.Point, jointCount)
	if len(f.Landmarks) > 0 {
		indices, ok := mediaPipeIndex[e.Side]
		if !ok {
			indices = mediaPipeIndex[SideLeft]
		}
		for j, idx := range indices {
			if idx >= len(f.Landmarks) {
				continue
			}
			lm := f.Landmarks[idx]
			if !lm.visible(e.MinVisibility) {
				continue
			}
			points[Joint(j)] = geometry.Point{X: lm.X, Y: lm.Y}
		}
	}
	for name, lm := range f.Joints {
		j, ok := ParseJoint(name)
		if !ok || !lm.visible(e.MinVisibility) {
			continue
		}
		points[j] = geometry.Point{X: lm.X, Y: lm.Y}
	}
	return NewSnapshot(points)
}
