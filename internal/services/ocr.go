package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/hschub/hschub-backend/internal/platform/logger"
)

// OCRService extracts text from a rasterized exam page.
type OCRService interface {
	ExtractText(ctx context.Context, img []byte) (string, error)
	Close() error
}

type visionOCRService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVisionOCRService(ctx context.Context, log *logger.Logger) (OCRService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var (
		client *vision.ImageAnnotatorClient
		err    error
	)
	if creds != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(creds))
	} else {
		// ADC (attached service account)
		client, err = vision.NewImageAnnotatorClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}

	return &visionOCRService{
		log:    log.With("service", "VisionOCRService"),
		client: client,
	}, nil
}

func (s *visionOCRService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *visionOCRService) ExtractText(ctx context.Context, img []byte) (string, error) {
	if len(img) == 0 {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := s.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	return documentTextFromResponse(resp)
}

// documentTextFromResponse unwraps the single-image annotation result. A
// page with no detectable text yields an empty string, not an error.
func documentTextFromResponse(resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if resp == nil || len(resp.Responses) == 0 {
		return "", nil
	}
	ann := resp.Responses[0]
	if ann.GetError() != nil {
		return "", fmt.Errorf("vision annotation error: %s", ann.GetError().GetMessage())
	}
	return ann.GetFullTextAnnotation().GetText(), nil
}
