package extract

import (
	"strings"
	"testing"
)

func TestFindCBCSection(t *testing.T) {
	text := "Patient: John Smith\nHAEMATOLOGY\nNeutrophils 4.5 x10³/L\nLymphocytes 1.8 x10³/L\nKIDNEY FUNCTION\nCreatinine 80 umol/L\n"
	section := FindCBCSection(text)
	if !strings.HasPrefix(section, "HAEMATOLOGY") {
		t.Fatalf("section starts with %q", section[:20])
	}
	if !strings.Contains(section, "Neutrophils") {
		t.Fatal("section lost the count lines")
	}
	if strings.Contains(section, "Creatinine") {
		t.Fatal("section ran past the next panel")
	}
}

func TestFindCBCSectionCaseInsensitiveHeader(t *testing.T) {
	section := FindCBCSection("complete blood count\nPlatelets 250 x10³/L\n")
	if !strings.Contains(section, "Platelets") {
		t.Fatalf("section=%q", section)
	}
}

func TestFindCBCSectionFallback(t *testing.T) {
	long := strings.Repeat("filler line without any panel marker\n", 100)
	section := FindCBCSection(long)
	if len(section) != 2000 {
		t.Fatalf("len=%d", len(section))
	}

	short := "just two lines\nof plain text"
	if got := FindCBCSection(short); got != short {
		t.Fatalf("section=%q", got)
	}
}
