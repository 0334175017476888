package services

import (
	"strings"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
)

func TestDocumentTextFromResponse(t *testing.T) {
	resp := &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{Text: "Find f'(x) given f(x)=x^2"},
		}},
	}
	text, err := documentTextFromResponse(resp)
	if err != nil {
		t.Fatalf("documentTextFromResponse: %v", err)
	}
	if text != "Find f'(x) given f(x)=x^2" {
		t.Fatalf("text %q", text)
	}
}

func TestDocumentTextFromResponseBlankPage(t *testing.T) {
	text, err := documentTextFromResponse(&visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{}},
	})
	if err != nil {
		t.Fatalf("blank page should not error: %v", err)
	}
	if text != "" {
		t.Fatalf("blank page produced text %q", text)
	}

	text, err = documentTextFromResponse(nil)
	if err != nil || text != "" {
		t.Fatalf("nil response: text=%q err=%v", text, err)
	}
}

func TestDocumentTextFromResponseAnnotationError(t *testing.T) {
	_, err := documentTextFromResponse(&visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{
			Error: &statuspb.Status{Code: 3, Message: "image too large"},
		}},
	})
	if err == nil {
		t.Fatalf("expected error for failed annotation")
	}
	if !strings.Contains(err.Error(), "image too large") {
		t.Fatalf("error lost the annotation message: %v", err)
	}
}
