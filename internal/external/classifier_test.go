package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posturewatch/internal/types"
)

func newClassifier(t *testing.T, handler http.HandlerFunc) *ClassifierClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClassifierClient(&http.Client{Timeout: time.Second}, ClassifierClientConfig{URL: server.URL}, WithSleepFunc(noopSleep))
}

func TestClassify_SendsFeatureVector(t *testing.T) {
	var got map[string]float64
	client := newClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"class_id":1,"label":"good","confidence":0.93,"proba":[0.07,0.93]}`))
	})

	fv := types.FeatureVector{TorsoAngle: 0.1, NeckAngle: 12, ShoulderTilt: -0.01, HipTilt: 0.3, HeadToShoulder: 0.4}
	res, err := client.Classify(context.Background(), fv)
	require.NoError(t, err)

	assert.Equal(t, "good", res.Label)
	assert.InDelta(t, 0.93, res.Confidence, 1e-9)
	assert.False(t, res.Failed)
	assert.True(t, res.IsGood())

	for _, key := range []string{"torso_angle", "neck_angle", "shoulder_tilt", "hip_tilt", "head_forward_z", "head_to_shoulder"} {
		assert.Contains(t, got, key)
	}
	assert.InDelta(t, 12.0, got["neck_angle"], 1e-9)
}

func TestClassify_LabelResolution(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantLabel      string
		wantConfidence float64
	}{
		{name: "label wins", body: `{"label":"bad","class_id":0,"confidence":0.6}`, wantLabel: "bad", wantConfidence: 0.6},
		{name: "class id fallback", body: `{"class_id":2,"confidence":0.5}`, wantLabel: "2", wantConfidence: 0.5},
		{name: "empty label is kept", body: `{"label":"","class_id":3}`, wantLabel: ""},
		{name: "null label falls back", body: `{"label":null,"class_id":4}`, wantLabel: "4"},
		{name: "string class id", body: `{"class_id":"good","confidence":0.8}`, wantLabel: "good", wantConfidence: 0.8},
		{name: "null class id", body: `{"class_id":null}`, wantLabel: types.UnknownLabel},
		{name: "nothing", body: `{}`, wantLabel: types.UnknownLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClassifier(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := client.Classify(context.Background(), types.FeatureVector{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, res.Label)
			assert.InDelta(t, tt.wantConfidence, res.Confidence, 1e-9)
		})
	}
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode types.ErrorCode
	}{
		{name: "error body", status: http.StatusOK, body: `{"error":"model error","detail":"nan input"}`, wantCode: types.ErrCodeUpstreamClassifier},
		{name: "malformed json", status: http.StatusOK, body: `not-json`, wantCode: types.ErrCodeUpstreamInvalidPayload},
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":"Invalid payload"}`, wantCode: types.ErrCodeUpstreamClassifier},
		{name: "upstream down", status: http.StatusBadGateway, body: `{"error":"Upstream error"}`, wantCode: types.ErrCodeUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClassifier(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			res, err := client.Classify(context.Background(), types.FeatureVector{})
			require.Error(t, err)
			assert.True(t, res.Failed)
			assert.False(t, res.IsGood())
			assert.Equal(t, err, res.Err)

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantCode, appErr.Code)
		})
	}
}

func TestClassify_ContextDeadline(t *testing.T) {
	client := newClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := client.Classify(ctx, types.FeatureVector{})
	require.Error(t, err)
	assert.True(t, res.Failed)
}
