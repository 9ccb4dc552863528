// Package posture turns pose keypoints into the geometric feature vector the
// posture classifier consumes. Everything here is pure: no I/O, no clocks and
// no retained state between calls.
package posture

import (
	"errors"
	"math"

	"posturewatch/internal/types"
)

// MinKeypointScore is the confidence floor below which a keypoint is not
// considered visible. Extraction uses keypoint presence only; the floor is
// applied when reporting how many landmarks are visible.
const MinKeypointScore = 0.2

// epsilon guards divisions by vector lengths that may be zero.
const epsilon = 1e-8

var (
	// ErrInsufficientLandmarks is returned when either shoulder is missing.
	// It is a normal outcome for a cycle, not a failure.
	ErrInsufficientLandmarks = errors.New("posture: insufficient landmarks")

	// ErrInvalidDimensions is returned when the frame size cannot be used to
	// normalize keypoint positions.
	ErrInvalidDimensions = errors.New("posture: frame dimensions must be positive")
)

// Extract computes the FeatureVector for pose, whose keypoint positions are in
// pixels of a width x height frame. Calling Extract twice with the same input
// yields identical output.
func Extract(pose types.Pose, width, height int) (types.FeatureVector, error) {
	if width <= 0 || height <= 0 {
		return types.FeatureVector{}, ErrInvalidDimensions
	}

	norm := func(part types.AnatomicalPart) (types.Point, bool) {
		kp, ok := pose.Get(part)
		if !ok {
			return types.Point{}, false
		}
		return types.Point{
			X: kp.Position.X / float64(width),
			Y: kp.Position.Y / float64(height),
		}, true
	}

	lsh, okL := norm(types.PartLeftShoulder)
	rsh, okR := norm(types.PartRightShoulder)
	if !okL || !okR {
		return types.FeatureVector{}, ErrInsufficientLandmarks
	}
	midSh := midpoint(lsh, rsh)

	fv := types.FeatureVector{
		ShoulderTilt: lsh.Y - rsh.Y,
		HeadForwardZ: 0,
	}

	lhip, okLH := norm(types.PartLeftHip)
	rhip, okRH := norm(types.PartRightHip)
	if !okLH || !okRH {
		return fv, nil
	}

	midHip := midpoint(lhip, rhip)
	torso := sub(midSh, midHip)
	torsoLen := length(torso)

	fv.TorsoAngle = math.Abs(math.Atan2(torso.X, -torso.Y))
	fv.HipTilt = midHip.Y - midSh.Y

	if nose, ok := norm(types.PartNose); ok {
		head := sub(nose, midSh)
		fv.NeckAngle = angleBetween(torso, head)
		fv.HeadToShoulder = length(head) / math.Max(torsoLen, epsilon)
	}

	return fv, nil
}

// angleBetween returns the angle between a and b in degrees.
func angleBetween(a, b types.Point) float64 {
	denom := length(a) * length(b)
	if denom == 0 {
		denom = epsilon
	}
	cos := (a.X*b.X + a.Y*b.Y) / denom
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

func midpoint(a, b types.Point) types.Point {
	return types.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func sub(a, b types.Point) types.Point {
	return types.Point{X: a.X - b.X, Y: a.Y - b.Y}
}

func length(p types.Point) float64 {
	return math.Hypot(p.X, p.Y)
}
