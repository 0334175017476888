package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"

	"github.com/hschub/hschub-backend/internal/platform/apierr"
	"github.com/hschub/hschub-backend/internal/platform/logger"
)

const (
	rasterDPI = 200
	stitchGap = 32
)

// ExtractedQuestion is the normalized output of one upload: the page image
// as base64 PNG plus its OCR text.
type ExtractedQuestion struct {
	Base64PNG string
	Text      string
}

type ExtractionService interface {
	ExtractFromFile(ctx context.Context, path string) (*ExtractedQuestion, error)
}

type extractionService struct {
	log *logger.Logger
	ocr OCRService
}

func NewExtractionService(ocr OCRService, log *logger.Logger) ExtractionService {
	return &extractionService{
		log: log.With("service", "ExtractionService"),
		ocr: ocr,
	}
}

func (s *extractionService) ExtractFromFile(ctx context.Context, path string) (*ExtractedQuestion, error) {
	var (
		img image.Image
		err error
	)

	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		img, err = s.rasterizePDF(ctx, path)
	} else {
		img, err = decodeImageFile(path)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}
	raw := buf.Bytes()

	text, err := s.ocr.ExtractText(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("ocr failed: %w", err)
	}

	return &ExtractedQuestion{
		Base64PNG: base64.StdEncoding.EncodeToString(raw),
		Text:      text,
	}, nil
}

// rasterizePDF renders every page via pdftoppm and stitches multi-page
// documents into one double-spread canvas.
func (s *extractionService) rasterizePDF(ctx context.Context, path string) (image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "pdfraster_")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", fmt.Sprintf("%d", rasterDPI), path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, apierr.BadRequest("invalid_pdf",
			fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	names, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, apierr.BadRequest("empty_pdf", fmt.Errorf("pdf has no pages"))
	}

	pages := make([]image.Image, 0, len(names))
	for _, name := range names {
		pg, err := decodeImageFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to decode rendered page %s: %w", filepath.Base(name), err)
		}
		pages = append(pages, pg)
	}

	if len(pages) == 1 {
		return pages[0], nil
	}
	return stitchDoubleSpreads(pages, stitchGap), nil
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apierr.BadRequest("unreadable_file", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apierr.BadRequest("invalid_image", fmt.Errorf("failed to decode image: %w", err))
	}
	return img, nil
}

// stitchDoubleSpreads arranges pages two per row (like an open exam
// booklet) on a white canvas. Heights are unified within each row and an
// odd final page is centered.
func stitchDoubleSpreads(pages []image.Image, gap int) image.Image {
	rows := make([]image.Image, 0, (len(pages)+1)/2)
	for i := 0; i < len(pages); i += 2 {
		left := pages[i]
		var right image.Image
		if i+1 < len(pages) {
			right = pages[i+1]
		}

		targetH := left.Bounds().Dy()
		if right != nil && right.Bounds().Dy() > targetH {
			targetH = right.Bounds().Dy()
		}

		leftR := resizeToHeight(left, targetH)
		if right != nil {
			rightR := resizeToHeight(right, targetH)
			rowW := leftR.Bounds().Dx() + gap + rightR.Bounds().Dx()
			dc := gg.NewContext(rowW, targetH)
			dc.SetRGB(1, 1, 1)
			dc.Clear()
			dc.DrawImage(leftR, 0, 0)
			dc.DrawImage(rightR, leftR.Bounds().Dx()+gap, 0)
			rows = append(rows, dc.Image())
		} else {
			rowW := leftR.Bounds().Dx() + 2*gap
			dc := gg.NewContext(rowW, targetH)
			dc.SetRGB(1, 1, 1)
			dc.Clear()
			dc.DrawImage(leftR, (rowW-leftR.Bounds().Dx())/2, 0)
			rows = append(rows, dc.Image())
		}
	}

	totalW := 0
	totalH := gap * (len(rows) - 1)
	for _, r := range rows {
		if r.Bounds().Dx() > totalW {
			totalW = r.Bounds().Dx()
		}
		totalH += r.Bounds().Dy()
	}

	dc := gg.NewContext(totalW, totalH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	y := 0
	for _, r := range rows {
		dc.DrawImage(r, (totalW-r.Bounds().Dx())/2, y)
		y += r.Bounds().Dy() + gap
	}
	return dc.Image()
}

func resizeToHeight(img image.Image, targetH int) image.Image {
	b := img.Bounds()
	if b.Dy() == targetH {
		return img
	}
	newW := int(float64(b.Dx()) * float64(targetH) / float64(b.Dy()))
	dst := image.NewRGBA(image.Rect(0, 0, newW, targetH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
