package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"hemindex/internal"
)

func ExportRowsToXLSX(rows []internal.ResultExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"report_id", "source_kind", "source_ref", "processed_at", "extraction_method",
		"overall_quality", "avg_confidence", "manual_review",
		"patient_age", "patient_sex", "test_date",
		"neutrophils", "lymphocytes", "platelets", "monocytes",
		"sii", "nlr", "plr", "siri", "mlr", "piv",
		"overall_risk", "overall_status",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ReportID)
		set(2, row.SourceKind)
		set(3, row.SourceRef)
		set(4, row.ProcessedAt)
		set(5, row.ExtractionMethod)
		set(6, derefString(row.OverallQuality))
		set(7, derefFloat(row.AvgConfidence))
		set(8, row.ManualReview)
		set(9, derefInt(row.PatientAge))
		set(10, derefString(row.PatientSex))
		set(11, derefString(row.TestDate))
		set(12, derefFloat(row.Neutrophils))
		set(13, derefFloat(row.Lymphocytes))
		set(14, derefFloat(row.Platelets))
		set(15, derefFloat(row.Monocytes))
		set(16, derefFloat(row.SII))
		set(17, derefFloat(row.NLR))
		set(18, derefFloat(row.PLR))
		set(19, derefFloat(row.SIRI))
		set(20, derefFloat(row.MLR))
		set(21, derefFloat(row.PIV))
		set(22, derefString(row.OverallRisk))
		set(23, derefString(row.OverallStatus))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
