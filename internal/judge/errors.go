package judge

import (
	"errors"
	"strings"

	"github.com/verte-zerg/repjudge/internal/pose"
)

var (
	// ErrInvalidConfig is returned by New when thresholds or the movement are unusable.
	ErrInvalidConfig = errors.New("invalid judge config")
	// ErrMissingLandmark marks frames skipped because a required joint was not observed.
	ErrMissingLandmark = errors.New("missing landmark")
	// ErrDegenerateGeometry marks frames skipped because a joint angle was undefined.
	ErrDegenerateGeometry = errors.New("degenerate joint geometry")
)

// MissingLandmarkError lists the required joints absent from a snapshot.
type MissingLandmarkError struct {
	Joints []pose.Joint
}

func (e *MissingLandmarkError) Error() string {
	names := make([]string, len(e.Joints))
	for i, j := range e.Joints {
		names[i] = j.String()
	}
	return "missing landmark: " + strings.Join(names, ", ")
}

// Is reports whether target is ErrMissingLandmark.
func (e *MissingLandmarkError) Is(target error) bool {
	return target == ErrMissingLandmark
}

// IsNoObservation reports whether err means the frame was skipped without
// touching judge state.
func IsNoObservation(err error) bool {
	return errors.Is(err, ErrMissingLandmark) || errors.Is(err, ErrDegenerateGeometry)
}
