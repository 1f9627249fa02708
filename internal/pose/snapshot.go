package pose

import "github.com/verte-zerg/repjudge/internal/geometry"

// Snapshot holds the joint positions observed in one analyzed frame.
// The zero value is an empty snapshot. Snapshots are values; copies never
// share state.
type Snapshot struct {
	points  [jointCount]geometry.Point
	present [jointCount]bool
}

// NewSnapshot builds a snapshot from the given joint positions.
// Joints outside the tracked set are ignored.
func NewSnapshot(points map[Joint]geometry.Point) Snapshot {
	var s Snapshot
	for j, p := range points {
		if j < 0 || j >= jointCount {
			continue
		}
		s.points[j] = p
		s.present[j] = true
	}
	return s
}

// Joint returns the position of j and whether it was observed.
func (s Snapshot) Joint(j Joint) (geometry.Point, bool) {
	if j < 0 || j >= jointCount || !s.present[j] {
		return geometry.Point{}, false
	}
	return s.points[j], true
}

// Len returns the number of observed joints.
func (s Snapshot) Len() int {
	n := 0
	for _, ok := range s.present {
		if ok {
			n++
		}
	}
	return n
}

// Missing returns the joints from required that the snapshot lacks, in order.
func (s Snapshot) Missing(required []Joint) []Joint {
	var missing []Joint
	for _, j := range required {
		if _, ok := s.Joint(j); !ok {
			missing = append(missing, j)
		}
	}
	return missing
}
