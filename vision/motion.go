package vision

import (
	"errors"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/ws-go/pipeline"
	"github.com/khaledhikmat/ws-go/service/config"
)

var errNotMat = errors.New("frame is not a gocv Mat")

// MotionDetector is a MOG2 background subtractor followed by a near-saturation
// threshold, so shadow pixels (127) never count, and an external-contour area check.
type MotionDetector struct {
	params config.MotionParameters
	mog2   gocv.BackgroundSubtractorMOG2
	mask   gocv.Mat
	thresh gocv.Mat
}

func NewMotionDetector(params config.MotionParameters) *MotionDetector {
	return &MotionDetector{
		params: params,
		mog2:   gocv.NewBackgroundSubtractorMOG2WithParams(params.History, params.VarThreshold, params.DetectShadows),
		mask:   gocv.NewMat(),
		thresh: gocv.NewMat(),
	}
}

func (d *MotionDetector) Observe(frame pipeline.FrameData) (bool, error) {
	mat, ok := frame.Mat.(*gocv.Mat)
	if !ok {
		return false, errNotMat
	}
	if mat.Empty() {
		return false, errors.New("empty frame")
	}

	d.mog2.Apply(*mat, &d.mask)
	gocv.Threshold(d.mask, &d.thresh, d.params.BinaryThreshold, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(d.thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) > d.params.MinContourArea {
			return true, nil
		}
	}
	return false, nil
}

func (d *MotionDetector) Close() error {
	d.thresh.Close()
	d.mask.Close()
	return d.mog2.Close()
}
