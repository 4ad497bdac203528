// Package ocr rasterizes scanned lab reports and runs them through
// tesseract. It is the fallback for PDFs whose text layer is missing or
// too thin to parse, and the only path for image attachments.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hemindex/internal/config"
)

type Engine struct {
	pdftoppm  string
	tesseract string
	lang      string
	dpi       int
	maxPages  int
	runner    Runner
}

func New(cfg config.Config) *Engine {
	return &Engine{
		pdftoppm:  cfg.OCRPdftoppmBin,
		tesseract: cfg.OCRTesseractBin,
		lang:      cfg.OCRLanguage,
		dpi:       cfg.OCRDPI,
		maxPages:  cfg.OCRMaxPages,
		runner:    execRunner{},
	}
}

// NewWithRunner swaps in a stub runner; tests use it to avoid requiring
// poppler and tesseract on the machine.
func NewWithRunner(cfg config.Config, r Runner) *Engine {
	e := New(cfg)
	e.runner = r
	return e
}

// PDFText rasterizes the PDF page by page and OCRs each image. Pages are
// joined with a \f marker so downstream line splitting keeps page breaks.
func (e *Engine) PDFText(ctx context.Context, path string) (string, int, error) {
	tmpDir, err := os.MkdirTemp("", "hemindex-ocr-*")
	if err != nil {
		return "", 0, err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.pdftoppm, "-r", fmt.Sprintf("%d", e.dpi), "-png", path, prefix)
	if err != nil {
		return "", 0, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.maxPages > 0 && len(matches) > e.maxPages {
		matches = matches[:e.maxPages]
	}
	if len(matches) == 0 {
		return "", 0, fmt.Errorf("pdftoppm produced no page images")
	}

	var b strings.Builder
	for _, img := range matches {
		txt, err := e.ImageText(ctx, img)
		if err != nil {
			return "", 0, err
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(txt)
	}
	return b.String(), len(matches), nil
}

// ImageText OCRs a single image file.
func (e *Engine) ImageText(ctx context.Context, path string) (string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.tesseract, path, "stdout", "-l", e.lang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
