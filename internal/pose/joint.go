// Package pose defines single-side pose snapshots and pose stream decoding.
package pose

import (
	"fmt"
	"strings"
)

// Joint names an anatomical keypoint on one side of the body.
type Joint int

// Joints tracked by the judge.
const (
	Shoulder Joint = iota
	Elbow
	Wrist
	Hip
	Knee
	Ankle
	jointCount
)

var jointNames = [jointCount]string{
	Shoulder: "shoulder",
	Elbow:    "elbow",
	Wrist:    "wrist",
	Hip:      "hip",
	Knee:     "knee",
	Ankle:    "ankle",
}

// String returns the lowercase joint name.
func (j Joint) String() string {
	if j < 0 || j >= jointCount {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// AllJoints returns every tracked joint in declaration order.
func AllJoints() []Joint {
	out := make([]Joint, 0, jointCount)
	for j := Shoulder; j < jointCount; j++ {
		out = append(out, j)
	}
	return out
}

// ParseJoint resolves a joint name. Matching is case-insensitive and accepts
// an optional "left_"/"right_" prefix.
func ParseJoint(name string) (Joint, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "left_")
	name = strings.TrimPrefix(name, "right_")
	for j, n := range jointNames {
		if n == name {
			return Joint(j), true
		}
	}
	return 0, false
}

// Side selects which half of the body is read from a full-body landmark set.
type Side int

// Supported sides.
const (
	SideLeft Side = iota
	SideRight
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// ParseSide parses "left" or "right".
func ParseSide(value string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "left", "l":
		return SideLeft, nil
	case "right", "r":
		return SideRight, nil
	default:
		return SideLeft, fmt.Errorf("unknown side %q (expected left or right)", value)
	}
}
