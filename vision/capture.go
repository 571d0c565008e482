package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand"
	"time"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/ws-go/pipeline"
)

type cameraSource struct {
	name    string
	capture *gocv.VideoCapture
}

// NewCameraSource opens a device index ("0"), a video file or a stream URL.
func NewCameraSource(source string) (pipeline.Source, error) {
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("error opening video source %s: %w", source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("video source %s is not available", source)
	}

	return &cameraSource{
		name:    source,
		capture: capture,
	}, nil
}

func (s *cameraSource) Name() string {
	return s.name
}

// Read returns io.EOF once the device stops delivering frames.
func (s *cameraSource) Read(ctx context.Context) (pipeline.FrameData, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.FrameData{}, err
	}

	img := gocv.NewMat()
	if ok := s.capture.Read(&img); !ok {
		img.Close() // Crucial to close the image to avoid memory leaks
		return pipeline.FrameData{}, io.EOF
	}
	if img.Empty() {
		img.Close()
		return pipeline.FrameData{}, errors.New("empty frame")
	}

	return pipeline.FrameData{Mat: &img, Timestamp: time.Now()}, nil
}

func (s *cameraSource) Close() error {
	return s.capture.Close()
}

type randomSource struct {
	width    int
	height   int
	interval time.Duration
	frames   int
}

// NewRandomSource produces noise frames at roughly 25 fps with a bright block that
// appears every few seconds, enough to trip the motion gate in dev runs.
func NewRandomSource() pipeline.Source {
	return &randomSource{
		width:    640,
		height:   480,
		interval: 40 * time.Millisecond,
	}
}

func (s *randomSource) Name() string {
	return "random"
}

func (s *randomSource) Read(ctx context.Context) (pipeline.FrameData, error) {
	select {
	case <-ctx.Done():
		return pipeline.FrameData{}, ctx.Err()
	case <-time.After(s.interval):
	}

	s.frames++
	img := gocv.NewMatWithSize(s.height, s.width, gocv.MatTypeCV8UC3)
	gocv.RandU(&img, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(30, 30, 30, 0))

	// An "item" stays in view for two seconds out of every ten.
	if phase := s.frames % 250; phase >= 200 {
		x := rand.Intn(s.width / 2)
		y := rand.Intn(s.height / 2)
		gocv.Rectangle(&img, image.Rect(x, y, x+200, y+150), color.RGBA{220, 220, 220, 0}, -1)
	}

	return pipeline.FrameData{Mat: &img, Timestamp: time.Now()}, nil
}

func (s *randomSource) Close() error {
	return nil
}
