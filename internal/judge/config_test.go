package judge

import (
	"errors"
	"math"
	"testing"

	"github.com/verte-zerg/repjudge/internal/pose"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"unknown movement", Config{Movement: 0, DepthThreshold: 85, ExtensionThreshold: 165}},
		{"depth too low", Config{Movement: Thruster, DepthThreshold: 69, ExtensionThreshold: 165}},
		{"depth too high", Config{Movement: Thruster, DepthThreshold: 101, ExtensionThreshold: 165}},
		{"extension too low", Config{Movement: AirSquat, DepthThreshold: 85, ExtensionThreshold: 149}},
		{"extension too high", Config{Movement: AirSquat, DepthThreshold: 85, ExtensionThreshold: 181}},
		{"depth nan", Config{Movement: AirSquat, DepthThreshold: math.NaN(), ExtensionThreshold: 165}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j, err := New(tc.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected invalid config error, got %v", err)
			}
			if j != nil {
				t.Fatalf("expected nil judge")
			}
		})
	}
}

func TestDefaultConfigBounds(t *testing.T) {
	for _, m := range Movements() {
		if err := DefaultConfig(m).Validate(); err != nil {
			t.Fatalf("default config for %v: %v", m, err)
		}
	}
	edges := Config{Movement: Thruster, DepthThreshold: MinDepthThreshold, ExtensionThreshold: MaxExtensionThreshold}
	if err := edges.Validate(); err != nil {
		t.Fatalf("expected inclusive bounds, got %v", err)
	}
}

func TestParseMovement(t *testing.T) {
	for _, in := range []string{"thruster", "Thruster", " THRUSTER "} {
		if m, err := ParseMovement(in); err != nil || m != Thruster {
			t.Fatalf("parse %q: %v %v", in, m, err)
		}
	}
	for _, in := range []string{"air-squat", "Air Squat", "airsquat", "air_squat"} {
		if m, err := ParseMovement(in); err != nil || m != AirSquat {
			t.Fatalf("parse %q: %v %v", in, m, err)
		}
	}
	if _, err := ParseMovement("deadlift"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected invalid config for unknown movement, got %v", err)
	}
}

func TestPolicyRequiredJoints(t *testing.T) {
	squat, _ := PolicyFor(AirSquat)
	got := squat.RequiredJoints()
	want := []pose.Joint{pose.Shoulder, pose.Hip, pose.Knee, pose.Ankle}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	thruster, _ := PolicyFor(Thruster)
	if len(thruster.RequiredJoints()) != 6 {
		t.Fatalf("expected all joints for thruster, got %v", thruster.RequiredJoints())
	}
}

func TestOutcomeRoundTrip(t *testing.T) {
	for _, o := range []Outcome{ValidRep, NoRep} {
		parsed, err := ParseOutcome(o.String())
		if err != nil || parsed != o {
			t.Fatalf("round trip %v: %v %v", o, parsed, err)
		}
	}
}
