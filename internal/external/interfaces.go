package external

import (
	"context"
	"encoding/json"

	"posturewatch/internal/types"
)

// Classifier sends a feature vector to the posture classification service.
type Classifier interface {
	Classify(ctx context.Context, fv types.FeatureVector) (types.ClassificationResult, error)
}

// PoseEstimator produces keypoints for one frame.
type PoseEstimator interface {
	Estimate(ctx context.Context, frame types.Frame) (types.Pose, error)
}

// AlertStore persists alerts on behalf of the user identified by token.
type AlertStore interface {
	CreateAlert(ctx context.Context, token string, input types.AlertInput) (types.Alert, error)
}

// Inference forwards a raw feature payload to the model-serving backend and
// returns its raw JSON answer.
type Inference interface {
	Predict(ctx context.Context, payload json.RawMessage) (json.RawMessage, error)
}

// UserAgent is sent on every outbound request.
const UserAgent = "PostureWatch/1.0"
