package posture

import (
	"math"

	"posturewatch/internal/types"
)

// DisplayMetrics are human-facing renderings of a FeatureVector. They are
// never sent to the classifier.
type DisplayMetrics struct {
	BackAngleDeg     float64 `json:"back_angle_deg"`
	ShoulderTiltPct  float64 `json:"shoulder_tilt_pct"`
	HeadForwardScore float64 `json:"head_forward_score"`
}

// Display converts fv into display units: the torso angle in degrees, the
// shoulder tilt magnitude scaled by 100, and the head-to-shoulder ratio.
func Display(fv types.FeatureVector) DisplayMetrics {
	return DisplayMetrics{
		BackAngleDeg:     fv.TorsoAngle * 180 / math.Pi,
		ShoulderTiltPct:  math.Abs(fv.ShoulderTilt) * 100,
		HeadForwardScore: fv.HeadToShoulder,
	}
}

// VisibleKeypoints counts keypoints at or above MinKeypointScore.
func VisibleKeypoints(pose types.Pose) int {
	return pose.CountAbove(MinKeypointScore)
}
