package internal

// FieldOrder fixes the canonical iteration order over CBC fields so
// extraction output, validation and reports stay deterministic.
var FieldOrder = []string{"neutrophils", "lymphocytes", "platelets", "monocytes"}

// RequiredFields must all be present before indices can be calculated;
// monocytes only unlock the monocyte-dependent indices.
var RequiredFields = []string{"neutrophils", "lymphocytes", "platelets"}
