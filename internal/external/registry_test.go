package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posturewatch/internal/config"
)

func trackerConfig() *config.TrackerConfig {
	return &config.TrackerConfig{
		Environment: "local",
		Camera:      config.CameraConfig{Width: 640, Height: 480},
		Pose:        config.PoseConfig{URL: "http://127.0.0.1:9000/estimate", OutputStride: 16},
		Classifier:  config.ClassifierConfig{URL: "http://127.0.0.1:8080/v1/posture/predict"},
	}
}

func TestNewClientRegistry_StubAlertStoreWithoutURL(t *testing.T) {
	reg, err := NewClientRegistry(trackerConfig(), nil)
	require.NoError(t, err)

	assert.NotNil(t, reg.Estimator)
	assert.NotNil(t, reg.Classifier)
	assert.IsType(t, &StubAlertStore{}, reg.AlertStore)
}

func TestNewClientRegistry_RealAlertStore(t *testing.T) {
	cfg := trackerConfig()
	cfg.Alerts.APIURL = "http://127.0.0.1:8080"

	reg, err := NewClientRegistry(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &AlertStoreClient{}, reg.AlertStore)
}

func TestNewClientRegistry_BadEstimatorURL(t *testing.T) {
	cfg := trackerConfig()
	cfg.Pose.URL = "://bad"

	_, err := NewClientRegistry(cfg, nil)
	assert.Error(t, err)
}
