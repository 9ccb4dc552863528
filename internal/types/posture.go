package types

import "strings"

// FeatureVector holds the geometric posture descriptors sent to the
// classification service. Field names are the service's wire contract.
type FeatureVector struct {
	TorsoAngle     float64 `json:"torso_angle"`      // radians from vertical
	NeckAngle      float64 `json:"neck_angle"`       // degrees between torso and head vectors
	ShoulderTilt   float64 `json:"shoulder_tilt"`    // signed, unit-square
	HipTilt        float64 `json:"hip_tilt"`         // signed, unit-square
	HeadForwardZ   float64 `json:"head_forward_z"`   // reserved, always 0
	HeadToShoulder float64 `json:"head_to_shoulder"` // ratio to torso length
}

// GoodPostureLabel is the classifier label that triggers alert generation.
const GoodPostureLabel = "good"

// UnknownLabel is used when a classification response carries neither a
// label nor a class id.
const UnknownLabel = "Unknown"

// ClassificationResult is the outcome of one classification request. When
// Failed is true, Label and Confidence are meaningless and Err describes the
// failure.
type ClassificationResult struct {
	Label      string
	Confidence float64
	Failed     bool
	Err        error
}

// ClassificationFailure builds the explicit failure marker.
func ClassificationFailure(err error) ClassificationResult {
	return ClassificationResult{Failed: true, Err: err}
}

// IsGood reports whether the result is a successful "good" classification.
// The label comparison is case-insensitive.
func (r ClassificationResult) IsGood() bool {
	return !r.Failed && strings.EqualFold(r.Label, GoodPostureLabel)
}
