package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"hemindex/internal"
	"hemindex/internal/config"
)

func testReader() *SourceReader {
	cfg, _ := config.Load()
	return NewSourceReader(cfg)
}

func writeTemp(t *testing.T, name string, blob []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestReadFilePlainText(t *testing.T) {
	path := writeTemp(t, "report.txt", []byte("FULL BLOOD COUNT\nNeutrophils 4.5 x10³/L\n"))
	docs, err := testReader().ReadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("docs=%d", len(docs))
	}
	if docs[0].Kind != internal.SourceText || docs[0].Method != internal.ExtractionTextLayer {
		t.Fatalf("doc=%+v", docs[0])
	}
	if !strings.Contains(docs[0].Text, "Neutrophils") {
		t.Fatalf("text=%q", docs[0].Text)
	}
}

func TestReadFileEmptyText(t *testing.T) {
	path := writeTemp(t, "empty.txt", []byte("   \n"))
	_, err := testReader().ReadFile(context.Background(), path)
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("err=%v", err)
	}
	if perr.Message != "No text could be extracted from report" {
		t.Fatalf("message=%q", perr.Message)
	}
	if len(perr.MissingFields) != 4 {
		t.Fatalf("missing=%+v", perr.MissingFields)
	}
}

func TestReadFileHTMLTable(t *testing.T) {
	html := `<html><body><h2>Blood Count</h2><table>
<tr><th>Test</th><th>Result</th><th>Range</th></tr>
<tr><td>Neutrophils</td><td>4.5 x10³/L</td><td>(1.60-6.90)</td></tr>
<tr><td>Lymphocytes</td><td>1.8 x10³/L</td><td>(1.00-3.00)</td></tr>
</table></body></html>`
	path := writeTemp(t, "report.html", []byte(html))
	docs, err := testReader().ReadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Kind != internal.SourceHTML {
		t.Fatalf("kind=%s", docs[0].Kind)
	}

	var neutLine string
	for _, line := range strings.Split(docs[0].Text, "\n") {
		if strings.Contains(line, "Neutrophils") {
			neutLine = line
		}
	}
	if !strings.Contains(neutLine, "4.5 x10³/L") || !strings.Contains(neutLine, "(1.60-6.90)") {
		t.Fatalf("row line=%q", neutLine)
	}
}

func TestReadFileXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"FULL BLOOD COUNT"},
		{"Neutrophils", "4.5 x10³/L", "(1.60-6.90)"},
		{"Lymphocytes", "1.8 x10³/L", "(1.00-3.00)"},
		{"Platelets", "250 x10³/L", "(150-450)"},
	})
	path := writeTemp(t, "cbc.xlsx", blob)
	docs, err := testReader().ReadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if docs[0].Kind != internal.SourceXLSX {
		t.Fatalf("kind=%s", docs[0].Kind)
	}
	if !strings.Contains(docs[0].Text, "Neutrophils 4.5 x10³/L (1.60-6.90)") {
		t.Fatalf("text=%q", docs[0].Text)
	}
}

func TestEmailDocumentsBodies(t *testing.T) {
	raw := strings.Join([]string{
		"From: lab@example.com",
		"To: clinic@example.com",
		"Subject: CBC Results - Smith",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="sep"`,
		"",
		"--sep",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"FULL BLOOD COUNT",
		"Neutrophils 4.5 x10³/L",
		"--sep",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<table><tr><td>Neutrophils</td><td>4.5 x10³/L</td></tr></table>",
		"--sep--",
		"",
	}, "\r\n")

	docs, subject, err := testReader().EmailDocuments(context.Background(), []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if subject != "CBC Results - Smith" {
		t.Fatalf("subject=%q", subject)
	}
	if len(docs) != 2 {
		t.Fatalf("docs=%d", len(docs))
	}
	if docs[0].Ref != "body:html" || docs[1].Ref != "body:text" {
		t.Fatalf("refs=%q %q", docs[0].Ref, docs[1].Ref)
	}
}

func TestEmailDocumentsAttachmentFirst(t *testing.T) {
	blob := mkXLSX([][]any{
		{"FULL BLOOD COUNT"},
		{"Neutrophils", "4.5 x10³/L"},
	})
	raw := strings.Join([]string{
		"From: lab@example.com",
		"Subject: Results attached",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Report attached.",
		"--outer",
		"Content-Type: application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		`Content-Disposition: attachment; filename="cbc.xlsx"`,
		"Content-Transfer-Encoding: base64",
		"",
		wrap76(base64.StdEncoding.EncodeToString(blob)),
		"--outer--",
		"",
	}, "\r\n")

	docs, _, err := testReader().EmailDocuments(context.Background(), []byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs=%d", len(docs))
	}
	if docs[0].Kind != internal.SourceXLSX || docs[0].Ref != "cbc.xlsx" {
		t.Fatalf("doc0=%+v", docs[0])
	}
	if docs[1].Ref != "body:text" {
		t.Fatalf("doc1=%+v", docs[1])
	}
}

func wrap76(s string) string {
	var b strings.Builder
	for len(s) > 76 {
		b.WriteString(s[:76])
		b.WriteString("\r\n")
		s = s[76:]
	}
	b.WriteString(s)
	return b.String()
}
