package pipeline

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"hemindex/internal"
	"hemindex/internal/util"
)

func TestExportRowsToXLSX(t *testing.T) {
	rows := []internal.ResultExportRow{
		{
			ReportID:         1,
			SourceKind:       "text",
			SourceRef:        "body:text",
			ProcessedAt:      "2026-01-15T10:00:00Z",
			ExtractionMethod: "text_based",
			OverallQuality:   util.StringPtr("high"),
			AvgConfidence:    util.FloatPtr(95),
			PatientAge:       util.IntPtr(58),
			PatientSex:       util.StringPtr("M"),
			TestDate:         util.StringPtr("2026-01-15"),
			Neutrophils:      util.FloatPtr(4500),
			Lymphocytes:      util.FloatPtr(1800),
			Platelets:        util.FloatPtr(250000),
			Monocytes:        util.FloatPtr(450),
			SII:              util.FloatPtr(625000),
			NLR:              util.FloatPtr(2.5),
			PLR:              util.FloatPtr(138.9),
			SIRI:             util.FloatPtr(1125),
			MLR:              util.FloatPtr(0.25),
			PIV:              util.FloatPtr(281250000),
			OverallRisk:      util.StringPtr("critical"),
			OverallStatus:    util.StringPtr("Critical inflammatory state - multiple indices severely elevated"),
		},
		{
			ReportID:         2,
			SourceKind:       "pdf",
			SourceRef:        "report.pdf",
			ProcessedAt:      "2026-01-16T10:00:00Z",
			ExtractionMethod: "ocr",
			Neutrophils:      util.FloatPtr(4000),
			Lymphocytes:      util.FloatPtr(2000),
			Platelets:        util.FloatPtr(250000),
			SII:              util.FloatPtr(500000),
			NLR:              util.FloatPtr(2),
			PLR:              util.FloatPtr(125),
			OverallRisk:      util.StringPtr("high"),
			OverallStatus:    util.StringPtr("Significant inflammation detected - medical evaluation recommended"),
		},
	}

	path := filepath.Join(t.TempDir(), "out", "results.xlsx")
	if err := ExportRowsToXLSX(rows, path); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("rows=%d", len(got))
	}

	header := got[0]
	if len(header) != 23 {
		t.Fatalf("header=%d", len(header))
	}
	if header[0] != "report_id" || header[11] != "neutrophils" || header[15] != "sii" || header[22] != "overall_status" {
		t.Fatalf("header=%+v", header)
	}

	first := got[1]
	if first[0] != "1" || first[8] != "58" || first[9] != "M" {
		t.Fatalf("first=%+v", first)
	}
	if first[11] != "4500" || first[15] != "625000" || first[17] != "138.9" {
		t.Fatalf("first values=%+v", first)
	}

	// nil optionals come out as blank cells, not zeros
	second := got[2]
	if second[14] != "" || second[18] != "" {
		t.Fatalf("second=%+v", second)
	}
	if second[21] != "high" {
		t.Fatalf("second risk=%q", second[21])
	}
}
