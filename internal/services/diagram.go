package services

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hschub/hschub-backend/internal/platform/logger"
	"github.com/hschub/hschub-backend/internal/platform/openai"
)

const diagramSystemPrompt = "You are a senior HSC Mathematics teacher and LaTeX/TikZ expert. " +
	"You generate clear, syllabus-aligned TikZ diagrams that match exam style."

const diagramUserPrompt = `You are given an HSC-style math question in LaTeX (no solutions provided).

Your task:
1) Decide whether a diagram meaningfully supports the question (axes, graph, labelled points,
   geometric figure, vector diagram, probability tree, etc).
2) If yes, output ONLY a valid TikZ diagram inside EXACTLY one environment:
   \begin{tikzpicture}
     ...
   \end{tikzpicture}

Constraints:
- Use TikZ primitives that are compatible with tikzjax or standalone->dvisvgm: no external images, no PGFPlots.
- If axes are needed, draw them with ticks and labels; label key points/curves clearly.
- Keep exam style: clean, uncluttered, black/white lines, sensible scales.
- DO NOT include preamble, \documentclass, \usepackage, or \begin{document}.
- DO NOT include any text besides the tikzpicture environment.
- If a diagram is unnecessary, still produce a minimal contextual diagram (e.g., axes with a placeholder curve) that remains useful.

Question (LaTeX):
---
%s
---

Topics (optional):
%s

Design hint (optional):
%s`

const (
	tikzBeginTag = `\begin{tikzpicture}`
	tikzEndTag   = `\end{tikzpicture}`

	convertTimeout = 60 * time.Second
)

type DiagramRequest struct {
	QuestionLatex string   `json:"question_latex"`
	Topics        []string `json:"topics,omitempty"`
	RenderTarget  string   `json:"render_target,omitempty"` // "tikz" | "svg"
	Temperature   float64  `json:"temperature,omitempty"`
	Hint          string   `json:"hint,omitempty"`
}

type DiagramResult struct {
	TikzCode string   `json:"tikz_code"`
	SVG      string   `json:"svg,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type DiagramService interface {
	Generate(ctx context.Context, req DiagramRequest) (*DiagramResult, error)
}

type diagramService struct {
	log *logger.Logger
	ai  openai.Client
}

func NewDiagramService(ai openai.Client, log *logger.Logger) DiagramService {
	return &diagramService{
		log: log.With("service", "DiagramService"),
		ai:  ai,
	}
}

func (s *diagramService) Generate(ctx context.Context, req DiagramRequest) (*DiagramResult, error) {
	temp := req.Temperature
	if temp == 0 {
		temp = 0.2
	}

	topics := "(none)"
	if len(req.Topics) > 0 {
		topics = topicsLines(req.Topics)
	}
	hint := "(none)"
	if strings.TrimSpace(req.Hint) != "" {
		hint = req.Hint
	}

	user := fmt.Sprintf(diagramUserPrompt, strings.TrimSpace(req.QuestionLatex), topics, hint)

	raw, err := s.ai.GenerateText(ctx, diagramSystemPrompt, user, openai.TextOptions{
		Temperature:     &temp,
		MaxOutputTokens: 900,
	})
	if err != nil {
		return nil, err
	}

	tikz, warnings := extractTikz(strings.TrimSpace(raw))
	if len(warnings) > 0 {
		s.log.Warn("Model output needed a fallback tikzpicture wrapper")
	}

	result := &DiagramResult{TikzCode: tikz, Warnings: warnings}

	if strings.EqualFold(req.RenderTarget, "svg") {
		svg, warn := tikzToSVG(ctx, tikz)
		result.SVG = svg
		if warn != "" {
			result.Warnings = append(result.Warnings, warn)
		}
	}
	return result, nil
}

// extractTikz pulls exactly one tikzpicture environment out of the model
// output, wrapping the whole response as a last resort.
func extractTikz(raw string) (string, []string) {
	start := strings.Index(raw, tikzBeginTag)
	end := strings.LastIndex(raw, tikzEndTag)
	if start == -1 || end == -1 || end < start {
		tikz := tikzBeginTag + "\n" + raw + "\n" + tikzEndTag
		return tikz, []string{"Model response did not include a clean tikzpicture environment; applied fallback wrapper."}
	}
	return raw[start : end+len(tikzEndTag)], nil
}

// tikzToSVG compiles TikZ to SVG through tectonic, then the first working
// PDF-to-SVG converter: dvisvgm --pdf, pdftocairo -svg, inkscape. Returns
// the SVG text and an accumulated warning string (either may be empty).
func tikzToSVG(ctx context.Context, tikz string) (string, string) {
	if _, err := exec.LookPath("tectonic"); err != nil {
		return "", "SVG: tectonic not found on server."
	}

	tmpDir, err := os.MkdirTemp("", "tikzsvg_")
	if err != nil {
		return "", fmt.Sprintf("SVG: temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	tex := "\\documentclass[tikz,border=2pt]{standalone}\n" +
		"\\usepackage{tikz}\n" +
		"\\begin{document}\n" +
		tikz + "\n" +
		"\\end{document}\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "fig.tex"), []byte(tex), 0o644); err != nil {
		return "", fmt.Sprintf("SVG: write tex: %v", err)
	}

	if out, err := runIn(ctx, tmpDir, "tectonic", "--keep-logs", "fig.tex"); err != nil {
		return "", fmt.Sprintf("SVG: tectonic error: %s", truncate(out, 2000))
	}
	pdfPath := filepath.Join(tmpDir, "fig.pdf")
	if fi, err := os.Stat(pdfPath); err != nil || fi.Size() == 0 {
		return "", "SVG: PDF not produced by tectonic."
	}

	var warnings []string

	if _, err := exec.LookPath("dvisvgm"); err == nil {
		if _, err := exec.LookPath("gs"); err != nil {
			warnings = append(warnings, "SVG: Ghostscript (gs) not found; dvisvgm --pdf may fail.")
		}
		out, err := runIn(ctx, tmpDir, "dvisvgm", "--no-fonts", "--exact", "--pdf", "fig.pdf", "-o", "fig.svg")
		if svg := readSVGFile(tmpDir); err == nil && svg != "" {
			return svg, strings.Join(warnings, "; ")
		}
		warnings = append(warnings, fmt.Sprintf("SVG: dvisvgm error: %s", truncate(out, 2000)))
	}

	if _, err := exec.LookPath("pdftocairo"); err == nil {
		out, err := runIn(ctx, tmpDir, "pdftocairo", "-svg", "fig.pdf", "fig.svg")
		if svg := readSVGFile(tmpDir); err == nil && svg != "" {
			return svg, strings.Join(warnings, "; ")
		}
		warnings = append(warnings, fmt.Sprintf("SVG: pdftocairo error: %s", truncate(out, 2000)))
	}

	if _, err := exec.LookPath("inkscape"); err == nil {
		out, err := runIn(ctx, tmpDir, "inkscape", "--export-type=svg", "--export-filename=fig.svg", "fig.pdf")
		if svg := readSVGFile(tmpDir); err == nil && svg != "" {
			return svg, strings.Join(warnings, "; ")
		}
		warnings = append(warnings, fmt.Sprintf("SVG: inkscape error: %s", truncate(out, 2000)))
	}

	if len(warnings) == 0 {
		warnings = append(warnings, "SVG: conversion failed; no converter available.")
	}
	return "", strings.Join(warnings, "; ")
}

func runIn(ctx context.Context, dir, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return strings.TrimSpace(buf.String()), err
}

func readSVGFile(dir string) string {
	raw, err := os.ReadFile(filepath.Join(dir, "fig.svg"))
	if err != nil {
		return ""
	}
	return string(raw)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
