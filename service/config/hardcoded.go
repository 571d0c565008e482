package config

import (
	"path/filepath"
	"time"
)

// settings backs every IService implementation. The yaml tags double as the file format
// read by NewEnv.
type settings struct {
	ModeMaxShutdownTime  int                  `yaml:"mode_max_shutdown_time"`
	AgentHeartbeatPeriod int                  `yaml:"agent_heartbeat_period"`
	SettingsFolder       string               `yaml:"settings_folder"`
	SnapshotFile         string               `yaml:"snapshot_file"`
	DetectionLogFile     string               `yaml:"detection_log_file"`
	LogFile              string               `yaml:"log_file"`
	LogLevel             string               `yaml:"log_level"`
	FramerType           string               `yaml:"framer_type"`
	CameraSource         string               `yaml:"camera_source"`
	PreviewEnabled       bool                 `yaml:"preview"`
	UserIdentity         string               `yaml:"user_identity"`
	Motion               MotionParameters     `yaml:"motion"`
	Cooldown             CooldownParameters   `yaml:"cooldown"`
	Classifier           ClassifierParameters `yaml:"classifier"`
	Store                StoreParameters      `yaml:"store"`
	RedisURL             string               `yaml:"redis_url"`
	MQTT                 MQTTParameters       `yaml:"mqtt"`
	WebhookURL           string               `yaml:"webhook_url"`
	WebhookTimeout       time.Duration        `yaml:"webhook_timeout"`
	AlerterBufferSize    int                  `yaml:"alerter_buffer_size"`
	APIAddress           string               `yaml:"api_address"`
	MetricsAddress       string               `yaml:"metrics_address"`
	SentryDSN            string               `yaml:"sentry_dsn"`
}

type hardcodedService struct {
	settings
}

// NewHardCoded returns the defaults. They match the values the waste classifier was tuned with.
func NewHardCoded() IService {
	return &hardcodedService{settings: defaultSettings()}
}

func defaultSettings() settings {
	folder := "./settings"
	return settings{
		ModeMaxShutdownTime:  5,
		AgentHeartbeatPeriod: 30,
		SettingsFolder:       folder,
		SnapshotFile:         filepath.Join(folder, "waste_stats.json"),
		DetectionLogFile:     "./logs/detections.log",
		LogFile:              "./logs/ws.log",
		LogLevel:             "info",
		FramerType:           CameraFramerType,
		CameraSource:         "0",
		Motion: MotionParameters{
			History:         500,
			VarThreshold:    16,
			DetectShadows:   true,
			BinaryThreshold: 244,
			MinContourArea:  5000,
		},
		Cooldown: CooldownParameters{
			Initial:    4 * time.Second,
			Subsequent: 12 * time.Second,
		},
		Classifier: ClassifierParameters{
			ModelPath:           "./model/waste_classifier.onnx",
			CategoriesPath:      "./model/waste_categories.txt",
			ConfidenceThreshold: 0.7,
			InputSize:           224,
		},
		Store: StoreParameters{
			Driver:  SqliteStoreDriver,
			DSN:     filepath.Join(folder, "ws.db"),
			Timeout: 3 * time.Second,
		},
		MQTT: MQTTParameters{
			ClientID: "ws-go",
			Topic:    "ws/sorter",
			QoS:      1,
		},
		WebhookTimeout:    5 * time.Second,
		AlerterBufferSize: 100,
		APIAddress:        ":8080",
		MetricsAddress:    ":9090",
	}
}

func (s *settings) GetModeMaxShutdownTime() int {
	return s.ModeMaxShutdownTime
}

func (s *settings) GetAgentHeartbeatPeriod() int {
	return s.AgentHeartbeatPeriod
}

func (s *settings) GetSettingsFolder() string {
	return s.SettingsFolder
}

func (s *settings) GetSnapshotFile() string {
	return s.SnapshotFile
}

func (s *settings) GetDetectionLogFile() string {
	return s.DetectionLogFile
}

func (s *settings) GetLogFile() string {
	return s.LogFile
}

func (s *settings) GetLogLevel() string {
	return s.LogLevel
}

func (s *settings) GetFramerType() string {
	return s.FramerType
}

func (s *settings) GetCameraSource() string {
	return s.CameraSource
}

func (s *settings) GetPreviewEnabled() bool {
	return s.PreviewEnabled
}

func (s *settings) GetUserIdentity() string {
	return s.UserIdentity
}

func (s *settings) GetMotionParameters() MotionParameters {
	return s.Motion
}

func (s *settings) GetCooldownParameters() CooldownParameters {
	return s.Cooldown
}

func (s *settings) GetClassifierParameters() ClassifierParameters {
	return s.Classifier
}

func (s *settings) GetStoreParameters() StoreParameters {
	return s.Store
}

func (s *settings) GetRedisURL() string {
	return s.RedisURL
}

func (s *settings) GetMQTTParameters() MQTTParameters {
	return s.MQTT
}

func (s *settings) GetWebhookURL() string {
	return s.WebhookURL
}

func (s *settings) GetWebhookTimeout() time.Duration {
	return s.WebhookTimeout
}

func (s *settings) GetAlerterBufferSize() int {
	return s.AlerterBufferSize
}

func (s *settings) GetAPIAddress() string {
	return s.APIAddress
}

func (s *settings) GetMetricsAddress() string {
	return s.MetricsAddress
}

func (s *settings) GetSentryDSN() string {
	return s.SentryDSN
}
