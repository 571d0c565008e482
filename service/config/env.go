package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type envService struct {
	settings
}

// NewEnv layers an optional YAML file (WS_CONFIG_FILE) and WS_* environment variables
// over the hardcoded defaults, then validates the result.
func NewEnv() (IService, error) {
	s := defaultSettings()

	if path := os.Getenv("WS_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	s.ModeMaxShutdownTime = getEnvAsInt("WS_SHUTDOWN_SECONDS", s.ModeMaxShutdownTime)
	s.AgentHeartbeatPeriod = getEnvAsInt("WS_HEARTBEAT_SECONDS", s.AgentHeartbeatPeriod)
	s.SettingsFolder = getEnv("WS_SETTINGS_FOLDER", s.SettingsFolder)
	s.SnapshotFile = getEnv("WS_SNAPSHOT_FILE", s.SnapshotFile)
	s.DetectionLogFile = getEnv("WS_DETECTION_LOG", s.DetectionLogFile)
	s.LogFile = getEnv("WS_LOG_FILE", s.LogFile)
	s.LogLevel = getEnv("WS_LOG_LEVEL", s.LogLevel)
	s.FramerType = getEnv("WS_FRAMER", s.FramerType)
	s.CameraSource = getEnv("WS_CAMERA", s.CameraSource)
	s.PreviewEnabled = getEnvAsBool("WS_PREVIEW", s.PreviewEnabled)
	s.UserIdentity = getEnv("WS_USER_ID", s.UserIdentity)

	s.Motion.History = getEnvAsInt("WS_MOTION_HISTORY", s.Motion.History)
	s.Motion.VarThreshold = getEnvAsFloat("WS_MOTION_VAR_THRESHOLD", s.Motion.VarThreshold)
	s.Motion.BinaryThreshold = float32(getEnvAsFloat("WS_MOTION_BINARY_THRESHOLD", float64(s.Motion.BinaryThreshold)))
	s.Motion.MinContourArea = getEnvAsFloat("WS_MOTION_MIN_AREA", s.Motion.MinContourArea)

	s.Cooldown.Initial = getEnvAsDuration("WS_COOLDOWN_INITIAL", s.Cooldown.Initial)
	s.Cooldown.Subsequent = getEnvAsDuration("WS_COOLDOWN_SUBSEQUENT", s.Cooldown.Subsequent)

	s.Classifier.ModelPath = getEnv("WS_MODEL_PATH", s.Classifier.ModelPath)
	s.Classifier.CategoriesPath = getEnv("WS_CATEGORIES_PATH", s.Classifier.CategoriesPath)
	s.Classifier.ConfidenceThreshold = float32(getEnvAsFloat("WS_CONFIDENCE_THRESHOLD", float64(s.Classifier.ConfidenceThreshold)))

	s.Store.Driver = getEnv("WS_STORE_DRIVER", s.Store.Driver)
	s.Store.DSN = getEnv("WS_STORE_DSN", s.Store.DSN)
	s.Store.Timeout = getEnvAsDuration("WS_STORE_TIMEOUT", s.Store.Timeout)

	s.RedisURL = getEnv("WS_REDIS_URL", s.RedisURL)
	s.MQTT.Broker = getEnv("WS_MQTT_BROKER", s.MQTT.Broker)
	s.MQTT.Topic = getEnv("WS_MQTT_TOPIC", s.MQTT.Topic)
	s.WebhookURL = getEnv("WS_WEBHOOK_URL", s.WebhookURL)
	s.WebhookTimeout = getEnvAsDuration("WS_WEBHOOK_TIMEOUT", s.WebhookTimeout)
	s.APIAddress = getEnv("WS_API_ADDRESS", s.APIAddress)
	s.MetricsAddress = getEnv("WS_METRICS_ADDRESS", s.MetricsAddress)
	s.SentryDSN = getEnv("WS_SENTRY_DSN", s.SentryDSN)

	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &envService{settings: s}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("12s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultValue
}
