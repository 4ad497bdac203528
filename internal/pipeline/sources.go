package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"hemindex/internal"
	"hemindex/internal/config"
	"hemindex/internal/ocr"
	"hemindex/internal/util"
)

// ParseError is the one hard failure the extraction flow produces: the
// source yielded no usable text or no CBC values. It carries whatever
// diagnostic text was recovered so callers can offer manual entry.
type ParseError struct {
	Message       string
	ExtractedText string
	MissingFields []string
}

func (e *ParseError) Error() string { return e.Message }

// Document is one text rendition of a lab report, tagged with where it
// came from and how the text was obtained.
type Document struct {
	Kind   internal.SourceKind
	Method internal.ExtractionMethod
	Ref    string
	Text   string
	Pages  int
}

type SourceReader struct {
	cfg config.Config
	ocr *ocr.Engine
}

func NewSourceReader(cfg config.Config) *SourceReader {
	return &SourceReader{cfg: cfg, ocr: ocr.New(cfg)}
}

// ReadFile turns a report file into one or more text documents. Single
// formats yield one document; .eml files yield one per parseable part.
func (r *SourceReader) ReadFile(ctx context.Context, path string) ([]Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc, err := r.pdfDocument(ctx, path, blob, path)
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil

	case ".html", ".htm":
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		text, err := htmlToText(blob)
		if err != nil {
			return nil, err
		}
		return wrapDocument(internal.SourceHTML, path, text)

	case ".xlsx", ".xls":
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		text, err := xlsxToText(blob)
		if err != nil {
			return nil, err
		}
		return wrapDocument(internal.SourceXLSX, path, text)

	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		text, err := r.ocr.ImageText(ctx, path)
		if err != nil {
			return nil, &ParseError{
				Message:       "No text could be extracted from report: " + err.Error(),
				MissingFields: missingAll(),
			}
		}
		if strings.TrimSpace(text) == "" {
			return nil, &ParseError{Message: "No text could be extracted from report", MissingFields: missingAll()}
		}
		return []Document{{Kind: internal.SourceImage, Method: internal.ExtractionOCR, Ref: path, Text: text, Pages: 1}}, nil

	case ".eml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		docs, _, err := r.EmailDocuments(ctx, raw)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			return nil, &ParseError{Message: "No text could be extracted from report", MissingFields: missingAll()}
		}
		return docs, nil

	default:
		// plain text and anything unrecognized: take the bytes as-is
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return wrapDocument(internal.SourceText, path, string(blob))
	}
}

// EmailDocuments extracts every parseable text rendition from a raw
// RFC-822 message: attachments first (labs usually attach the report),
// then the HTML body, then the plain-text body.
func (r *SourceReader) EmailDocuments(ctx context.Context, raw []byte) ([]Document, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", err
	}

	docs := []Document{}
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		lower := strings.ToLower(name)

		switch {
		case strings.HasSuffix(lower, ".pdf"):
			if doc, err := r.pdfAttachment(ctx, att.Content, name); err == nil {
				docs = append(docs, doc)
			}
		case strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm"):
			if text, err := htmlToText(att.Content); err == nil && strings.TrimSpace(text) != "" {
				docs = append(docs, Document{Kind: internal.SourceHTML, Method: internal.ExtractionTextLayer, Ref: name, Text: text})
			}
		case strings.HasSuffix(lower, ".xlsx") || strings.HasSuffix(lower, ".xls"):
			if text, err := xlsxToText(att.Content); err == nil && strings.TrimSpace(text) != "" {
				docs = append(docs, Document{Kind: internal.SourceXLSX, Method: internal.ExtractionTextLayer, Ref: name, Text: text})
			}
		case strings.HasSuffix(lower, ".png") || strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg"):
			if text, err := r.imageAttachment(ctx, att.Content, lower); err == nil && strings.TrimSpace(text) != "" {
				docs = append(docs, Document{Kind: internal.SourceImage, Method: internal.ExtractionOCR, Ref: name, Text: text, Pages: 1})
			}
		}
	}

	if env.HTML != "" {
		if text, err := htmlToText([]byte(env.HTML)); err == nil && strings.TrimSpace(text) != "" {
			docs = append(docs, Document{Kind: internal.SourceHTML, Method: internal.ExtractionTextLayer, Ref: "body:html", Text: text})
		}
	}
	if strings.TrimSpace(env.Text) != "" {
		docs = append(docs, Document{Kind: internal.SourceText, Method: internal.ExtractionTextLayer, Ref: "body:text", Text: env.Text})
	}

	return docs, env.GetHeader("Subject"), nil
}

// pdfDocument prefers the embedded text layer and falls back to OCR when
// the layer is missing or too thin to hold a blood panel. A thin layer is
// still returned as-is when OCR itself is unavailable.
func (r *SourceReader) pdfDocument(ctx context.Context, path string, content []byte, ref string) (Document, error) {
	layerText, layerErr := pdfTextLayer(content)
	stripped := strings.TrimSpace(layerText)
	if layerErr == nil && len(stripped) > r.cfg.TextLayerMinLen {
		return Document{Kind: internal.SourcePDF, Method: internal.ExtractionTextLayer, Ref: ref, Text: layerText}, nil
	}

	ocrText, pages, ocrErr := r.ocr.PDFText(ctx, path)
	if ocrErr != nil {
		if layerErr == nil && stripped != "" {
			return Document{Kind: internal.SourcePDF, Method: internal.ExtractionTextLayer, Ref: ref, Text: layerText}, nil
		}
		return Document{}, &ParseError{
			Message:       "No text could be extracted from PDF",
			MissingFields: missingAll(),
		}
	}
	method := internal.ExtractionOCR
	if stripped != "" {
		method = internal.ExtractionMixed
	}
	return Document{Kind: internal.SourcePDF, Method: method, Ref: ref, Text: ocrText, Pages: pages}, nil
}

func (r *SourceReader) pdfAttachment(ctx context.Context, content []byte, ref string) (Document, error) {
	tmp, err := os.CreateTemp("", "hemindex-att-*.pdf")
	if err != nil {
		return Document{}, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return Document{}, err
	}
	if err := tmp.Close(); err != nil {
		return Document{}, err
	}
	return r.pdfDocument(ctx, tmpPath, content, ref)
}

func (r *SourceReader) imageAttachment(ctx context.Context, content []byte, lowerName string) (string, error) {
	tmp, err := os.CreateTemp("", "hemindex-att-*"+filepath.Ext(lowerName))
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return r.ocr.ImageText(ctx, tmpPath)
}

func pdfTextLayer(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}

// htmlToText flattens a lab-portal page into line-oriented text: each
// table row becomes one space-joined line so field names stay on the same
// line as their values, which the extractor depends on.
func htmlToText(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	doc.Find("script,style").Remove()

	lines := []string{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := []string{}
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			if t := util.NormalizeSpaces(cell.Text()); t != "" {
				cells = append(cells, t)
			}
		})
		if len(cells) > 0 {
			lines = append(lines, strings.Join(cells, " "))
		}
	})
	doc.Find("p,li,h1,h2,h3,h4").Each(func(_ int, el *goquery.Selection) {
		if el.Closest("tr").Length() > 0 {
			return
		}
		if t := util.NormalizeSpaces(el.Text()); t != "" {
			lines = append(lines, t)
		}
	})

	if len(lines) == 0 {
		return util.NormalizeSpaces(doc.Text()), nil
	}
	return strings.Join(lines, "\n"), nil
}

func xlsxToText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", err
	}
	defer f.Close()

	lines := []string{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if t := util.NormalizeSpaces(c); t != "" {
					cells = append(cells, t)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " "))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

func wrapDocument(kind internal.SourceKind, ref, text string) ([]Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Message: "No text could be extracted from report", MissingFields: missingAll()}
	}
	return []Document{{Kind: kind, Method: internal.ExtractionTextLayer, Ref: ref, Text: text}}, nil
}

func missingAll() []string {
	return append([]string{}, internal.FieldOrder...)
}
