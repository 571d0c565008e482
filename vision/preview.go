package vision

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/ws-go/pipeline"
)

const (
	keyEsc = 27
	keyQ   = 'q'
)

type windowPreview struct {
	window *gocv.Window
}

// NewPreview opens a window that shows every frame with the last accepted detection.
// Pressing q or Esc asks the loop to stop.
func NewPreview(title string) pipeline.Preview {
	return &windowPreview{
		window: gocv.NewWindow(title),
	}
}

func (p *windowPreview) Show(frame pipeline.FrameData, caption string) error {
	mat, ok := frame.Mat.(*gocv.Mat)
	if !ok {
		return errNotMat
	}
	if mat.Empty() {
		return nil
	}

	view := mat.Clone()
	defer view.Close()

	if caption != "" {
		gocv.PutText(&view, caption, image.Pt(10, 30), gocv.FontHersheySimplex, 1, color.RGBA{0, 255, 0, 0}, 2)
	}

	p.window.IMShow(view)
	switch p.window.WaitKey(1) {
	case keyEsc, keyQ:
		return pipeline.ErrStopRequested
	}
	return nil
}

func (p *windowPreview) Close() error {
	if p.window == nil {
		return errors.New("preview already closed")
	}
	err := p.window.Close()
	p.window = nil
	return err
}
