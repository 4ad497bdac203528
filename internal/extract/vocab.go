package extract

// FieldMappings lists the label variations labs print for each CBC field.
var FieldMappings = map[string][]string{
	"neutrophils": {
		"neutrophils", "neutrophil", "segs", "segmented neutrophils",
		"pmn", "polymorphonuclear", "poly",
	},
	"lymphocytes": {
		"lymphocytes", "lymphocyte", "lymphs", "lympho",
	},
	"platelets": {
		"platelets", "platelet", "plt", "thrombocytes",
	},
	"monocytes": {
		"monocytes", "monocyte", "monos", "mono",
	},
}

// SectionHeaders mark the start of the blood count block in a report.
var SectionHeaders = []string{
	"FBC", "CBC", "HAEMATOLOGY", "HEMATOLOGY", "BLOOD COUNT",
	"FULL BLOOD COUNT", "COMPLETE BLOOD COUNT",
}

// sectionTerminators are panel headers that usually follow the blood count.
var sectionTerminators = []string{"KIDNEY", "LIVER", "LIPID", "VITAMIN", "CARDIAC"}

// SupportedLabFormats is informational, surfaced by the CLI.
var SupportedLabFormats = []string{
	"Innoquest Diagnostics",
	"LabCorp",
	"Quest Diagnostics",
	"Generic",
}
