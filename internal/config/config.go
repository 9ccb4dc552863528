// Package config defines the configuration of the tracker and API processes.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> Secret files (*_FILE, Lowest)
//
// A missing required value or invalid format fails startup.
package config

import "time"

// TrackerConfig configures cmd/tracker: the frame loop, its upstream services
// and the local observer API.
type TrackerConfig struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Addr        string `envconfig:"TRACKER_ADDR" default:":8090"`

	Camera     CameraConfig
	Pose       PoseConfig
	Classifier ClassifierConfig
	Alerts     AlertConfig
	MQTT       MQTTConfig
	AWS        AWSConfig
	Metrics    MetricsConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo `ignored:"true"`
}

// APIConfig configures cmd/api: the alert store and the classification proxy.
type APIConfig struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server    ServerConfig
	Database  DatabaseConfig
	Inference InferenceConfig
	Auth      AuthConfig
	AWS       AWSConfig
	Metrics   MetricsConfig

	Build BuildInfo `ignored:"true"`
}

// CameraConfig selects the frame source. Exactly one of URL or FramesDir is
// expected; URL wins when both are set.
type CameraConfig struct {
	URL       string        `envconfig:"CAMERA_URL" validate:"omitempty,url"`
	FramesDir string        `envconfig:"FRAMES_DIR"`
	Loop      bool          `envconfig:"FRAMES_LOOP" default:"true"`
	Width     int           `envconfig:"CAMERA_WIDTH" default:"640" validate:"gt=0"`
	Height    int           `envconfig:"CAMERA_HEIGHT" default:"480" validate:"gt=0"`
	Interval  time.Duration `envconfig:"FRAME_INTERVAL" default:"33ms" validate:"gt=0"`
	Timeout   time.Duration `envconfig:"CAMERA_TIMEOUT" default:"2s"`
}

// PoseConfig holds the pose estimator endpoint and its fixed model settings.
type PoseConfig struct {
	URL            string        `envconfig:"POSE_ESTIMATOR_URL" validate:"required,url"`
	ReadyURL       string        `envconfig:"POSE_READY_URL" validate:"omitempty,url"`
	OutputStride   int           `envconfig:"POSE_OUTPUT_STRIDE" default:"16" validate:"oneof=8 16 32"`
	FlipHorizontal bool          `envconfig:"POSE_FLIP_HORIZONTAL" default:"true"`
	Timeout        time.Duration `envconfig:"POSE_TIMEOUT" default:"2s"`
}

// ClassifierConfig holds the classification endpoint and its throttle.
type ClassifierConfig struct {
	URL      string        `envconfig:"ML_API_URL" default:"http://127.0.0.1:8080/v1/posture/predict" validate:"required,url"`
	Interval time.Duration `envconfig:"CLASSIFY_INTERVAL" default:"1s" validate:"gt=0"`
	Timeout  time.Duration `envconfig:"CLASSIFY_TIMEOUT" default:"5s" validate:"gt=0"`
}

// AlertConfig controls alert generation and remote persistence. An empty
// AuthToken means anonymous use: alerts stay local.
type AlertConfig struct {
	Cooldown       time.Duration `envconfig:"ALERT_COOLDOWN" default:"8s" validate:"gte=0"`
	APIURL         string        `envconfig:"ALERT_API_URL" validate:"omitempty,url"`
	AuthToken      SecretString  `envconfig:"ALERT_AUTH_TOKEN"`
	PersistTimeout time.Duration `envconfig:"PERSIST_TIMEOUT" default:"10s"`
	Snapshots      bool          `envconfig:"ALERT_SNAPSHOTS" default:"true"`
	HistoryLimit   int           `envconfig:"ALERT_HISTORY_LIMIT" default:"50" validate:"gt=0"`
}

// MQTTConfig enables publishing alerts to a broker when Broker is set.
type MQTTConfig struct {
	Broker   string       `envconfig:"MQTT_BROKER"`
	Topic    string       `envconfig:"MQTT_TOPIC" default:"posture/alerts"`
	ClientID string       `envconfig:"MQTT_CLIENT_ID" default:"posturewatch-tracker"`
	Username string       `envconfig:"MQTT_USERNAME"`
	Password SecretString `envconfig:"MQTT_PASSWORD"`
	QoS      byte         `envconfig:"MQTT_QOS" default:"1" validate:"lte=2"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        `envconfig:"PORT" default:"8080"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"20971520" validate:"gt=0"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	CorsAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	AutoMigrate       bool          `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// InferenceConfig points the classification proxy at the model server.
type InferenceConfig struct {
	URL     string        `envconfig:"INFERENCE_URL" default:"http://127.0.0.1:8001/predict" validate:"required,url"`
	Timeout time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"10s" validate:"gt=0"`
}

// AuthConfig describes how bearer tokens from the identity provider are
// verified. HS256 needs Secret, RS256 needs PublicKey (PEM).
type AuthConfig struct {
	SigningMethod string        `envconfig:"AUTH_SIGNING_METHOD" default:"HS256" validate:"oneof=HS256 RS256"`
	Secret        SecretString  `envconfig:"AUTH_SECRET" validate:"required_if=SigningMethod HS256"`
	PublicKey     SecretString  `envconfig:"AUTH_PUBLIC_KEY" validate:"required_if=SigningMethod RS256"`
	Issuer        string        `envconfig:"AUTH_ISSUER"`
	Audience      string        `envconfig:"AUTH_AUDIENCE"`
	Leeway        time.Duration `envconfig:"AUTH_LEEWAY" default:"30s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region        string `envconfig:"AWS_REGION" default:"us-east-1"`
	AlertQueueURL string `envconfig:"ALERT_QUEUE_URL" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend   string `envconfig:"METRICS_BACKEND" default:"prometheus" validate:"oneof=prometheus cloudwatch none"`
	Namespace string `envconfig:"METRIC_NAMESPACE" default:"PostureWatch"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a *_FILE secret could not be read.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
