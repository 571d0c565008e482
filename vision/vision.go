// Package vision holds the OpenCV side of a detection run: capture, motion gate,
// classifier and preview window.
package vision

import (
	"fmt"

	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/config"
)

// NewVision opens the configured source and builds a fresh motion gate. Each agent
// gets its own so background models are never shared between runs.
func NewVision(cfgSvc config.IService) (pipeline.Vision, error) {
	var source pipeline.Source
	switch cfgSvc.GetFramerType() {
	case config.RandomFramerType:
		source = NewRandomSource()
	case config.CameraFramerType:
		var err error
		source, err = NewCameraSource(cfgSvc.GetCameraSource())
		if err != nil {
			return pipeline.Vision{}, err
		}
	default:
		return pipeline.Vision{}, fmt.Errorf("unknown framer type %q", cfgSvc.GetFramerType())
	}

	vision := pipeline.Vision{
		Source: source,
		Gate:   NewMotionDetector(cfgSvc.GetMotionParameters()),
	}
	if cfgSvc.GetPreviewEnabled() {
		vision.Preview = NewPreview("Waste Classification")
	}
	return vision, nil
}
