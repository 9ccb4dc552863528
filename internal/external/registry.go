package external

import (
	"log/slog"
	"net/http"
	"time"

	"posturewatch/internal/config"
)

// ClientRegistry holds the tracker's outbound clients, built from config in
// one place.
type ClientRegistry struct {
	Estimator  *PoseEstimatorClient
	Classifier Classifier
	AlertStore AlertStore
}

// NewClientRegistry builds the pose estimator, classifier and alert store
// clients. Each gets its own *http.Client so the per-service timeouts are
// independent. Without ALERT_API_URL the alert store is a logging stub.
func NewClientRegistry(cfg *config.TrackerConfig, logger *slog.Logger, opts ...BaseClientOption) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	estimator, err := NewPoseEstimatorClient(
		&http.Client{Timeout: orDefault(cfg.Pose.Timeout, 2*time.Second)},
		PoseEstimatorClientConfig{
			URL:      cfg.Pose.URL,
			ReadyURL: cfg.Pose.ReadyURL,
			Model: PoseModelConfig{
				OutputStride:   cfg.Pose.OutputStride,
				InputWidth:     cfg.Camera.Width,
				InputHeight:    cfg.Camera.Height,
				FlipHorizontal: cfg.Pose.FlipHorizontal,
			},
			Logger: logger.With("client", "pose_estimator"),
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	classifier := NewClassifierClient(
		&http.Client{Timeout: orDefault(cfg.Classifier.Timeout, 5*time.Second)},
		ClassifierClientConfig{URL: cfg.Classifier.URL, Logger: logger.With("client", "classifier")},
		opts...,
	)

	var store AlertStore
	if cfg.Alerts.APIURL == "" {
		logger.Info("no alert API configured; alerts stay local")
		store = NewStubAlertStore(logger.With("client", "alert_store"))
	} else {
		store = NewAlertStoreClient(
			&http.Client{Timeout: orDefault(cfg.Alerts.PersistTimeout, 10*time.Second)},
			AlertStoreClientConfig{BaseURL: cfg.Alerts.APIURL, Logger: logger.With("client", "alert_store")},
			opts...,
		)
	}

	return &ClientRegistry{
		Estimator:  estimator,
		Classifier: classifier,
		AlertStore: store,
	}, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
