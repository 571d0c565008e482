package config

import "time"

const (
	CameraFramerType = "camera"
	RandomFramerType = "random"

	SqliteStoreDriver   = "sqlite"
	PostgresStoreDriver = "postgres"
	NoStoreDriver       = "none"
)

// shutdownMargin leaves room for the local flush and process teardown.
const shutdownMargin = 2 * time.Second

// ShutdownWait is how long the process waits for a cancelled mode processor. It covers
// the agent stop window plus the store read behind the final report.
func ShutdownWait(cfg IService) time.Duration {
	return time.Duration(cfg.GetModeMaxShutdownTime())*time.Second +
		cfg.GetStoreParameters().Timeout + shutdownMargin
}

type MotionParameters struct {
	History         int     `yaml:"history"`
	VarThreshold    float64 `yaml:"var_threshold"`
	DetectShadows   bool    `yaml:"detect_shadows"`
	BinaryThreshold float32 `yaml:"binary_threshold"`
	MinContourArea  float64 `yaml:"min_contour_area"`
}

type CooldownParameters struct {
	Initial    time.Duration `yaml:"initial"`
	Subsequent time.Duration `yaml:"subsequent"`
}

type ClassifierParameters struct {
	ModelPath           string  `yaml:"model_path"`
	CategoriesPath      string  `yaml:"categories_path"`
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	InputSize           int     `yaml:"input_size"`
}

type StoreParameters struct {
	Driver  string        `yaml:"driver"`
	DSN     string        `yaml:"dsn"`
	Timeout time.Duration `yaml:"timeout"`
}

type MQTTParameters struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetAgentHeartbeatPeriod() int
	GetSettingsFolder() string
	GetSnapshotFile() string
	GetDetectionLogFile() string
	GetLogFile() string
	GetLogLevel() string
	GetFramerType() string
	GetCameraSource() string
	GetPreviewEnabled() bool
	GetUserIdentity() string
	GetMotionParameters() MotionParameters
	GetCooldownParameters() CooldownParameters
	GetClassifierParameters() ClassifierParameters
	GetStoreParameters() StoreParameters
	GetRedisURL() string
	GetMQTTParameters() MQTTParameters
	GetWebhookURL() string
	GetWebhookTimeout() time.Duration
	GetAlerterBufferSize() int
	GetAPIAddress() string
	GetMetricsAddress() string
	GetSentryDSN() string
}
