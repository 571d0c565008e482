package config

import (
	"errors"
	"fmt"
	"time"
)

func Validate(s *settings) error {
	var errs []error

	switch s.FramerType {
	case CameraFramerType, RandomFramerType:
	default:
		errs = append(errs, fmt.Errorf("framer_type must be %q or %q, got %q", CameraFramerType, RandomFramerType, s.FramerType))
	}

	if s.FramerType == CameraFramerType && s.CameraSource == "" {
		errs = append(errs, errors.New("camera_source is required for the camera framer"))
	}

	if s.Classifier.ConfidenceThreshold < 0 || s.Classifier.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be within [0,1], got %v", s.Classifier.ConfidenceThreshold))
	}

	if s.Classifier.InputSize <= 0 {
		errs = append(errs, fmt.Errorf("classifier input_size must be positive, got %d", s.Classifier.InputSize))
	}

	if s.Cooldown.Initial < 0 || s.Cooldown.Subsequent < 0 {
		errs = append(errs, errors.New("cooldowns must not be negative"))
	}

	if s.Motion.MinContourArea <= 0 {
		errs = append(errs, fmt.Errorf("motion min_contour_area must be positive, got %v", s.Motion.MinContourArea))
	}

	if s.Motion.BinaryThreshold <= 0 || s.Motion.BinaryThreshold > 255 {
		errs = append(errs, fmt.Errorf("motion binary_threshold must be within (0,255], got %v", s.Motion.BinaryThreshold))
	}

	switch s.Store.Driver {
	case SqliteStoreDriver, PostgresStoreDriver:
		if s.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store dsn is required for driver %q", s.Store.Driver))
		}
		// An unbounded remote call would stall the detection loop.
		if s.Store.Timeout <= 0 {
			errs = append(errs, errors.New("store timeout must be positive"))
		}
		// The in-flight remote write has to finish inside the agent stop window.
		if s.ModeMaxShutdownTime > 0 && s.Store.Timeout > time.Duration(s.ModeMaxShutdownTime)*time.Second {
			errs = append(errs, fmt.Errorf("store timeout %s exceeds mode_max_shutdown_time of %ds", s.Store.Timeout, s.ModeMaxShutdownTime))
		}
	case NoStoreDriver:
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", s.Store.Driver))
	}

	if s.SnapshotFile == "" {
		errs = append(errs, errors.New("snapshot_file is required"))
	}

	if s.WebhookURL != "" && s.WebhookTimeout <= 0 {
		errs = append(errs, errors.New("webhook timeout must be positive"))
	}

	if s.AlerterBufferSize <= 0 {
		errs = append(errs, errors.New("alerter_buffer_size must be positive"))
	}

	if s.ModeMaxShutdownTime <= 0 {
		errs = append(errs, errors.New("mode_max_shutdown_time must be positive"))
	}

	return errors.Join(errs...)
}
