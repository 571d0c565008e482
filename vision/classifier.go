package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/khaledhikmat/ws-go/model"
	"github.com/khaledhikmat/ws-go/service/config"
	"github.com/khaledhikmat/ws-go/service/inference"
	"github.com/khaledhikmat/ws-go/service/lgr"
)

// ImageNet statistics the classifier was trained with, in RGB order.
var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Classifier runs an exported image-classification network through the OpenCV DNN
// module and returns the softmax-best category.
type Classifier struct {
	set       model.CategorySet
	inputSize int

	// WARNING: net is not thread-safe!!!
	mu  sync.Mutex
	net gocv.Net
}

// NewClassifier loads the model and its label file. Missing or unreadable artifacts
// are startup errors.
func NewClassifier(params config.ClassifierParameters) (*Classifier, error) {
	if _, err := os.Stat(params.ModelPath); err != nil {
		return nil, fmt.Errorf("classifier model %s: %w", params.ModelPath, err)
	}

	set, err := inference.LoadCategories(params.CategoriesPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(params.ModelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("error reading classifier model %s", params.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("error setting target: %w", err)
	}

	lgr.Logger.Info("classifier loaded",
		slog.String("model", params.ModelPath),
		slog.Int("categories", set.Len()),
		slog.String("openCV", gocv.Version()),
	)

	return &Classifier{
		set:       set,
		inputSize: params.InputSize,
		net:       net,
	}, nil
}

func (c *Classifier) Categories() model.CategorySet {
	return c.set
}

func (c *Classifier) Predict(ctx context.Context, img model.Image) (inference.Prediction, error) {
	mat, ok := img.(*gocv.Mat)
	if !ok {
		return inference.Prediction{}, errNotMat
	}
	if mat.Empty() {
		return inference.Prediction{}, errors.New("empty frame")
	}
	if err := ctx.Err(); err != nil {
		return inference.Prediction{}, err
	}

	// Scale to [0,1] and swap BGR to RGB, then normalise each channel in place.
	blob := gocv.BlobFromImage(*mat, 1.0/255.0, image.Pt(c.inputSize, c.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	data, err := blob.DataPtrFloat32()
	if err != nil {
		return inference.Prediction{}, fmt.Errorf("blob data: %w", err)
	}
	plane := c.inputSize * c.inputSize
	if len(data) != 3*plane {
		return inference.Prediction{}, fmt.Errorf("unexpected blob size %d", len(data))
	}
	for ch := 0; ch < 3; ch++ {
		values := data[ch*plane : (ch+1)*plane]
		for i, v := range values {
			values[i] = (v - channelMean[ch]) / channelStd[ch]
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	logits, err := output.DataPtrFloat32()
	if err != nil {
		return inference.Prediction{}, fmt.Errorf("model output: %w", err)
	}

	// Copy out of the Mat before it is closed.
	scores := make([]float32, len(logits))
	copy(scores, logits)

	return inference.Best(inference.Softmax(scores), c.set)
}

func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}
