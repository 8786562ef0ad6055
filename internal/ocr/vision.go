package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
)

// ErrEngineUnavailable is returned once the engine has failed to
// initialize; it stays failed for the rest of the process so each
// screenshot doesn't retry a broken credential setup.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

const recognizeTimeout = 60 * time.Second

// VisionEngine implements detect.Engine on Google Cloud Vision. The
// client is created lazily on first use, so a viewer that never
// triggers OCR pays nothing.
type VisionEngine struct {
	log             *zap.Logger
	credentialsFile string

	mu     sync.Mutex
	state  detect.EngineState
	failed bool
	client *vision.ImageAnnotatorClient
}

func NewVisionEngine(log *zap.Logger, credentialsFile string) *VisionEngine {
	return &VisionEngine{
		log:             log,
		credentialsFile: credentialsFile,
		state:           detect.EngineIdle,
	}
}

func (e *VisionEngine) State() detect.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ensureClient moves the engine Idle -> Loading -> Ready. A failed
// init pins the engine Unavailable.
func (e *VisionEngine) ensureClient(ctx context.Context) (*vision.ImageAnnotatorClient, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failed {
		return nil, ErrEngineUnavailable
	}
	if e.client != nil {
		return e.client, nil
	}

	e.state = detect.EngineLoading
	var opts []option.ClientOption
	if e.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(e.credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		e.failed = true
		e.state = detect.EngineUnavailable
		e.log.Error("Vision client initialization failed; OCR disabled for this process", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	e.client = client
	e.state = detect.EngineReady
	e.log.Info("Vision OCR engine ready")
	return client, nil
}

// Recognize runs text detection over a screenshot of the iframe region
// and returns the extracted text. Progress is reported per stage so the
// session is observable while the multi-second pipeline runs.
func (e *VisionEngine) Recognize(ctx context.Context, image []byte, progress detect.ProgressFunc) (string, error) {
	if progress == nil {
		progress = func(string, int) {}
	}
	if len(image) == 0 {
		return "", errors.New("empty screenshot")
	}
	progress("capture", 10)

	client, err := e.ensureClient(ctx)
	if err != nil {
		return "", err
	}
	progress("engine_init", 40)

	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
			},
		}},
	}
	resp, err := client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	progress("recognition", 80)

	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}

	var text string
	if fta := r0.FullTextAnnotation; fta != nil {
		text = collapseWhitespace(fta.Text)
	}
	progress("parse", 100)
	return text, nil
}

// Close releases the Vision client.
func (e *VisionEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	// A closed client can be re-created on the next use.
	e.state = detect.EngineIdle
	return err
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
