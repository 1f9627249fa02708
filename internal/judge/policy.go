package judge

import (
	"fmt"
	"math"
	"sort"

	"github.com/verte-zerg/repjudge/internal/geometry"
	"github.com/verte-zerg/repjudge/internal/pose"
)

// AngleKind names a measured joint angle.
type AngleKind int

// Measured angles.
const (
	KneeAngle AngleKind = iota
	HipAngle
	ElbowAngle
)

// angleJoints lists the (a, vertex, c) joints for each angle.
var angleJoints = map[AngleKind][3]pose.Joint{
	KneeAngle:  {pose.Hip, pose.Knee, pose.Ankle},
	HipAngle:   {pose.Shoulder, pose.Hip, pose.Knee},
	ElbowAngle: {pose.Shoulder, pose.Elbow, pose.Wrist},
}

func (k AngleKind) String() string {
	switch k {
	case KneeAngle:
		return "knee"
	case HipAngle:
		return "hip"
	case ElbowAngle:
		return "elbow"
	default:
		return fmt.Sprintf("angle(%d)", int(k))
	}
}

// Angles holds the joint angles measured on one frame, in degrees.
// Angles the movement does not use are NaN.
type Angles struct {
	Knee  float64
	Hip   float64
	Elbow float64
}

func unmeasured() Angles {
	return Angles{Knee: math.NaN(), Hip: math.NaN(), Elbow: math.NaN()}
}

func (a *Angles) set(k AngleKind, v float64) {
	switch k {
	case KneeAngle:
		a.Knee = v
	case HipAngle:
		a.Hip = v
	case ElbowAngle:
		a.Elbow = v
	}
}

// Policy is the rule set for one movement.
type Policy struct {
	Movement      Movement
	Name          string
	Slug          string
	Standard      string
	Measures      []AngleKind
	DepthFeedback string
	// Depth reports whether the frame is at the bottom of the movement.
	Depth func(a Angles, cfg Config) bool
	// Extension reports whether the frame reaches the top of the movement.
	Extension func(a Angles, cfg Config) bool
	// Lockout is checked once when extension is reached. A false result
	// scores the attempt as a no-rep with the returned reason.
	Lockout func(a Angles, cfg Config) (bool, string)
}

// ReasonSoftElbows is the no-rep reason for a thruster finished without arm lockout.
const ReasonSoftElbows = "Soft Elbows (No Lockout)"

const depthFeedback = "Depth Good"

var policies = map[Movement]Policy{
	AirSquat: {
		Movement:      AirSquat,
		Name:          "Air Squat",
		Slug:          "air-squat",
		Standard:      "hip crease below knee, then hips and knees open",
		Measures:      []AngleKind{KneeAngle, HipAngle},
		DepthFeedback: depthFeedback,
		Depth:         squatDepth,
		Extension:     squatExtension,
		Lockout:       noLockout,
	},
	Thruster: {
		Movement:      Thruster,
		Name:          "Thruster",
		Slug:          "thruster",
		Standard:      "squat depth, then hips, knees and elbows locked out overhead",
		Measures:      []AngleKind{KneeAngle, HipAngle, ElbowAngle},
		DepthFeedback: depthFeedback,
		Depth:         squatDepth,
		Extension:     squatExtension,
		Lockout:       overheadLockout,
	},
}

func squatDepth(a Angles, cfg Config) bool {
	return a.Knee < cfg.DepthThreshold
}

func squatExtension(a Angles, cfg Config) bool {
	return a.Knee > cfg.ExtensionThreshold && a.Hip > cfg.ExtensionThreshold
}

func noLockout(Angles, Config) (bool, string) {
	return true, ""
}

func overheadLockout(a Angles, cfg Config) (bool, string) {
	if a.Elbow > cfg.ExtensionThreshold {
		return true, ""
	}
	return false, ReasonSoftElbows
}

// PolicyFor returns the policy registered for m.
func PolicyFor(m Movement) (Policy, bool) {
	p, ok := policies[m]
	return p, ok
}

// Movements returns all supported movements in stable order.
func Movements() []Movement {
	out := make([]Movement, 0, len(policies))
	for m := range policies {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RequiredJoints returns the joints needed to measure the policy's angles.
func (p Policy) RequiredJoints() []pose.Joint {
	seen := map[pose.Joint]bool{}
	var out []pose.Joint
	for _, kind := range p.Measures {
		for _, j := range angleJoints[kind] {
			if !seen[j] {
				seen[j] = true
				out = append(out, j)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// measure computes the policy's angles from a snapshot. The caller must have
// checked that the required joints are present.
func (p Policy) measure(s pose.Snapshot) (Angles, error) {
	angles := unmeasured()
	for _, kind := range p.Measures {
		joints := angleJoints[kind]
		a, _ := s.Joint(joints[0])
		b, _ := s.Joint(joints[1])
		c, _ := s.Joint(joints[2])
		v := geometry.Angle(a, b, c)
		if geometry.IsDegenerate(v) {
			return angles, fmt.Errorf("%w: %s angle", ErrDegenerateGeometry, kind)
		}
		angles.set(kind, v)
	}
	return angles, nil
}
