package posture

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posturewatch/internal/types"
)

const (
	frameW = 640
	frameH = 480
)

// kp builds a keypoint from unit-square coordinates on a frameW x frameH frame.
func kp(part types.AnatomicalPart, x, y float64) types.Keypoint {
	return types.Keypoint{
		Part:     part,
		Position: types.Point{X: x * frameW, Y: y * frameH},
		Score:    0.9,
	}
}

func uprightPose() types.Pose {
	return types.Pose{Keypoints: []types.Keypoint{
		kp(types.PartNose, 0.5, 0.3),
		kp(types.PartLeftShoulder, 0.4, 0.5),
		kp(types.PartRightShoulder, 0.6, 0.5),
		kp(types.PartLeftHip, 0.4, 0.9),
		kp(types.PartRightHip, 0.6, 0.9),
	}}
}

func TestExtract_Upright(t *testing.T) {
	fv, err := Extract(uprightPose(), frameW, frameH)
	require.NoError(t, err)

	assert.Equal(t, 0.0, fv.ShoulderTilt)
	assert.InDelta(t, 0.0, fv.TorsoAngle, 1e-9)
	assert.InDelta(t, 0.4, fv.HipTilt, 1e-9)
	assert.InDelta(t, 0.0, fv.NeckAngle, 1e-4)
	assert.InDelta(t, 0.5, fv.HeadToShoulder, 1e-9)
	assert.Equal(t, 0.0, fv.HeadForwardZ)
}

func TestExtract_Idempotent(t *testing.T) {
	pose := uprightPose()
	pose.Keypoints[0] = kp(types.PartNose, 0.63, 0.31)

	first, err := Extract(pose, frameW, frameH)
	require.NoError(t, err)
	second, err := Extract(pose, frameW, frameH)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtract_MissingShoulders(t *testing.T) {
	tests := []struct {
		name string
		pose types.Pose
	}{
		{"empty pose", types.Pose{}},
		{"both shoulders missing", types.Pose{Keypoints: []types.Keypoint{
			kp(types.PartNose, 0.5, 0.3),
			kp(types.PartLeftHip, 0.4, 0.9),
			kp(types.PartRightHip, 0.6, 0.9),
		}}},
		{"right shoulder missing", types.Pose{Keypoints: []types.Keypoint{
			kp(types.PartLeftShoulder, 0.4, 0.5),
		}}},
		{"left shoulder missing", types.Pose{Keypoints: []types.Keypoint{
			kp(types.PartRightShoulder, 0.6, 0.5),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv, err := Extract(tt.pose, frameW, frameH)
			assert.ErrorIs(t, err, ErrInsufficientLandmarks)
			assert.Equal(t, types.FeatureVector{}, fv)
		})
	}
}

func TestExtract_InvalidDimensions(t *testing.T) {
	_, err := Extract(uprightPose(), 0, frameH)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = Extract(uprightPose(), frameW, -1)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestExtract_NoHips(t *testing.T) {
	pose := types.Pose{Keypoints: []types.Keypoint{
		kp(types.PartNose, 0.5, 0.3),
		kp(types.PartLeftShoulder, 0.4, 0.52),
		kp(types.PartRightShoulder, 0.6, 0.5),
		kp(types.PartLeftHip, 0.4, 0.9),
	}}

	fv, err := Extract(pose, frameW, frameH)
	require.NoError(t, err)

	assert.InDelta(t, 0.02, fv.ShoulderTilt, 1e-9)
	assert.Equal(t, 0.0, fv.TorsoAngle)
	assert.Equal(t, 0.0, fv.HipTilt)
	assert.Equal(t, 0.0, fv.NeckAngle)
	assert.Equal(t, 0.0, fv.HeadToShoulder)
}

func TestExtract_NoNose(t *testing.T) {
	pose := uprightPose()
	pose.Keypoints = pose.Keypoints[1:]

	fv, err := Extract(pose, frameW, frameH)
	require.NoError(t, err)

	assert.InDelta(t, 0.4, fv.HipTilt, 1e-9)
	assert.Equal(t, 0.0, fv.NeckAngle)
	assert.Equal(t, 0.0, fv.HeadToShoulder)
}

func TestExtract_TorsoAngleIsAbsolute(t *testing.T) {
	lean := func(dx float64) types.Pose {
		return types.Pose{Keypoints: []types.Keypoint{
			kp(types.PartLeftShoulder, 0.4+dx, 0.5),
			kp(types.PartRightShoulder, 0.6+dx, 0.5),
			kp(types.PartLeftHip, 0.4, 0.9),
			kp(types.PartRightHip, 0.6, 0.9),
		}}
	}

	right, err := Extract(lean(0.1), frameW, frameH)
	require.NoError(t, err)
	left, err := Extract(lean(-0.1), frameW, frameH)
	require.NoError(t, err)

	want := math.Atan2(0.1, 0.4)
	assert.InDelta(t, want, right.TorsoAngle, 1e-9)
	assert.InDelta(t, want, left.TorsoAngle, 1e-9)
}

func TestExtract_NeckAnglePerpendicular(t *testing.T) {
	pose := uprightPose()
	pose.Keypoints[0] = kp(types.PartNose, 0.7, 0.5)

	fv, err := Extract(pose, frameW, frameH)
	require.NoError(t, err)

	assert.InDelta(t, 90.0, fv.NeckAngle, 1e-6)
	assert.InDelta(t, 0.5, fv.HeadToShoulder, 1e-9)
}

func TestExtract_DegenerateVectorsStayFinite(t *testing.T) {
	// Nose on the shoulder midpoint and hips on the shoulders.
	pose := types.Pose{Keypoints: []types.Keypoint{
		kp(types.PartNose, 0.5, 0.5),
		kp(types.PartLeftShoulder, 0.4, 0.5),
		kp(types.PartRightShoulder, 0.6, 0.5),
		kp(types.PartLeftHip, 0.4, 0.5),
		kp(types.PartRightHip, 0.6, 0.5),
	}}

	fv, err := Extract(pose, frameW, frameH)
	require.NoError(t, err)

	for name, v := range map[string]float64{
		"torso_angle":      fv.TorsoAngle,
		"neck_angle":       fv.NeckAngle,
		"head_to_shoulder": fv.HeadToShoulder,
	} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s = %v", name, v)
	}
}

func TestDisplay(t *testing.T) {
	m := Display(types.FeatureVector{
		TorsoAngle:     math.Pi / 6,
		ShoulderTilt:   -0.035,
		HeadToShoulder: 0.42,
	})

	assert.InDelta(t, 30.0, m.BackAngleDeg, 1e-9)
	assert.InDelta(t, 3.5, m.ShoulderTiltPct, 1e-9)
	assert.Equal(t, 0.42, m.HeadForwardScore)
}

func TestVisibleKeypoints(t *testing.T) {
	pose := types.Pose{Keypoints: []types.Keypoint{
		{Part: types.PartNose, Score: 0.19},
		{Part: types.PartLeftEye, Score: 0.2},
		{Part: types.PartRightEye, Score: 0.95},
	}}
	assert.Equal(t, 2, VisibleKeypoints(pose))
}
