package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hemindex/internal/config"
)

// fakeRunner simulates pdftoppm and tesseract: page images appear on
// disk, OCR output is derived from the image filename.
type fakeRunner struct {
	pages   int
	fail    string
	stderr  string
	history [][]string
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.history = append(r.history, append([]string{name}, args...))

	if r.fail != "" && strings.Contains(name, r.fail) {
		return nil, []byte(r.stderr), errors.New("exit status 1")
	}

	if strings.Contains(name, "pdftoppm") {
		prefix := args[len(args)-1]
		for i := 1; i <= r.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	}

	// tesseract <file> stdout -l <lang>
	return []byte("ocr text from " + filepath.Base(args[0])), nil, nil
}

func TestPDFText(t *testing.T) {
	cfg, _ := config.Load()
	cfg.OCRMaxPages = 2

	runner := &fakeRunner{pages: 3}
	engine := NewWithRunner(cfg, runner)

	text, pages, err := engine.PDFText(context.Background(), "/tmp/report.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if pages != 2 {
		t.Fatalf("pages=%d", pages)
	}
	if !strings.Contains(text, "ocr text from page-1.png") || !strings.Contains(text, "ocr text from page-2.png") {
		t.Fatalf("text=%q", text)
	}
	if strings.Contains(text, "page-3.png") {
		t.Fatalf("page cap ignored: %q", text)
	}
	if !strings.Contains(text, "\f") {
		t.Fatalf("no page break marker: %q", text)
	}
}

func TestPDFTextNoPages(t *testing.T) {
	cfg, _ := config.Load()
	engine := NewWithRunner(cfg, &fakeRunner{pages: 0})

	_, _, err := engine.PDFText(context.Background(), "/tmp/report.pdf")
	if err == nil || !strings.Contains(err.Error(), "no page images") {
		t.Fatalf("err=%v", err)
	}
}

func TestPDFTextRasterizeError(t *testing.T) {
	cfg, _ := config.Load()
	engine := NewWithRunner(cfg, &fakeRunner{fail: "pdftoppm", stderr: "Syntax Error: couldn't read xref table"})

	_, _, err := engine.PDFText(context.Background(), "/tmp/report.pdf")
	if err == nil || !strings.Contains(err.Error(), "pdftoppm:") {
		t.Fatalf("err=%v", err)
	}
	if !strings.Contains(err.Error(), "couldn't read xref table") {
		t.Fatalf("stderr missing: %v", err)
	}
}

func TestImageText(t *testing.T) {
	cfg, _ := config.Load()
	runner := &fakeRunner{}
	engine := NewWithRunner(cfg, runner)

	text, err := engine.ImageText(context.Background(), "/tmp/scan.png")
	if err != nil {
		t.Fatal(err)
	}
	if text != "ocr text from scan.png" {
		t.Fatalf("text=%q", text)
	}

	call := runner.history[0]
	if call[2] != "stdout" || call[3] != "-l" {
		t.Fatalf("call=%+v", call)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got=%q", got)
	}
	long := strings.Repeat("x", 20)
	if got := truncate(long, 10); got != strings.Repeat("x", 10)+"...(truncated)" {
		t.Fatalf("got=%q", got)
	}
}
