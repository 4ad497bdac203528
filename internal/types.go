package internal

type ExtractionMethod string

const (
	ExtractionTextLayer ExtractionMethod = "text_based"
	ExtractionOCR       ExtractionMethod = "ocr"
	ExtractionMixed     ExtractionMethod = "mixed"
	ExtractionManual    ExtractionMethod = "manual"
)

type SourceKind string

const (
	SourcePDF    SourceKind = "pdf"
	SourceText   SourceKind = "text"
	SourceImage  SourceKind = "image"
	SourceHTML   SourceKind = "html"
	SourceXLSX   SourceKind = "xlsx"
	SourceManual SourceKind = "manual"
)

type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskMild     RiskLevel = "mild"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

type ExtractionQuality string

const (
	QualityHigh   ExtractionQuality = "high"
	QualityMedium ExtractionQuality = "medium"
	QualityLow    ExtractionQuality = "low"
)

// RefRange is a reference interval printed on the source report, in cells/µL.
type RefRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// FieldExtraction is one CBC field pulled out of report text. Value is nil
// when the field was not found, and then Confidence is always 0.
type FieldExtraction struct {
	Value            *float64  `json:"value"`
	Confidence       int       `json:"confidence"`
	Unit             *string   `json:"unit"`
	RawText          string    `json:"raw_text"`
	MatchedVariation string    `json:"matched_variation"`
	ReferenceRange   *RefRange `json:"reference_range,omitempty"`
}

func (f FieldExtraction) Found() bool { return f.Value != nil }

type AgeExtraction struct {
	Value      *int   `json:"value"`
	Confidence int    `json:"confidence"`
	RawText    string `json:"raw_text"`
	Pattern    string `json:"pattern_used"`
}

type SexExtraction struct {
	Value      *string `json:"value"`
	Confidence int     `json:"confidence"`
	RawText    string  `json:"raw_text"`
	Pattern    string  `json:"pattern_used"`
}

type DateExtraction struct {
	// Value is normalized to YYYY-MM-DD.
	Value      *string `json:"value"`
	Confidence int     `json:"confidence"`
	RawText    string  `json:"raw_text"`
	Pattern    string  `json:"pattern_used"`
}

type Demographics struct {
	Age      AgeExtraction  `json:"age"`
	Sex      SexExtraction  `json:"sex"`
	TestDate DateExtraction `json:"test_date"`
}

type DemographicCheck struct {
	Valid                    bool     `json:"valid"`
	Warnings                 []string `json:"warnings"`
	ManualVerificationNeeded bool     `json:"manual_verification_needed"`
}

type QualityReport struct {
	OverallQuality          ExtractionQuality `json:"overall_quality"`
	AverageConfidence       float64           `json:"average_confidence"`
	RequiredFieldsFound     int               `json:"required_fields_found"`
	TotalFieldsFound        int               `json:"total_fields_found"`
	QualityIssues           []string          `json:"quality_issues"`
	ManualReviewRecommended bool              `json:"manual_review_recommended"`
}

type ValueCheck struct {
	Valid    bool     `json:"valid"`
	Value    float64  `json:"value"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type Validation struct {
	Valid      bool                  `json:"valid"`
	Individual map[string]ValueCheck `json:"individual_results"`
	Errors     []string              `json:"errors"`
	Warnings   []string              `json:"warnings"`
}

type PDFValidation struct {
	Validation
	ConfidenceIssues         []string `json:"confidence_issues"`
	ManualVerificationNeeded bool     `json:"manual_verification_needed"`
}

type IndexResult struct {
	Value          float64   `json:"value"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Interpretation string    `json:"interpretation"`
}

type HighRiskIndex struct {
	Index     string    `json:"index"`
	Value     float64   `json:"value"`
	RiskLevel RiskLevel `json:"risk_level"`
}

type PanelSummary struct {
	OverallStatus   string          `json:"overall_inflammatory_status"`
	HighestRisk     []HighRiskIndex `json:"highest_risk_indices"`
	Recommendations []string        `json:"recommendations"`
}

type IndexAssessment struct {
	Value                 float64   `json:"value"`
	RiskLevel             RiskLevel `json:"risk_level"`
	ClinicalSignificance  string    `json:"clinical_significance"`
	Pathophysiology       string    `json:"pathophysiology"`
	DifferentialDiagnosis []string  `json:"differential_diagnosis"`
}

type PatientContext struct {
	Age               *int     `json:"age"`
	Sex               *string  `json:"sex"`
	AgeConsiderations []string `json:"age_considerations"`
	SexConsiderations []string `json:"sex_considerations"`
}

type RiskStratification struct {
	OverallRiskLevel string            `json:"overall_risk_level"`
	Urgency          string            `json:"urgency"`
	RiskDistribution map[RiskLevel]int `json:"risk_distribution"`
	RiskModifiers    []string          `json:"risk_modifiers"`
	CompositeScore   float64           `json:"composite_score"`
}

type RecommendationSet struct {
	Immediate  []string `json:"immediate"`
	ShortTerm  []string `json:"short_term"`
	LongTerm   []string `json:"long_term"`
	Lifestyle  []string `json:"lifestyle"`
	Monitoring []string `json:"monitoring"`
}

type FollowUpPlan struct {
	Timing              string   `json:"follow_up_timing"`
	MonitoringFrequency string   `json:"monitoring_frequency"`
	KeyParameters       []string `json:"key_parameters_to_track"`
	ConcerningChanges   []string `json:"concerning_changes"`
	ReferralCriteria    []string `json:"specialist_referral_criteria"`
}

type Interpretation struct {
	ClinicalAssessment map[string]IndexAssessment `json:"clinical_assessment"`
	RiskStratification RiskStratification         `json:"risk_stratification"`
	Recommendations    RecommendationSet          `json:"recommendations"`
	PatientContext     *PatientContext            `json:"patient_context,omitempty"`
	FollowUp           FollowUpPlan               `json:"follow_up"`
}

// ParsingDetails records how values were pulled out of a source document.
type ParsingDetails struct {
	ExtractionMethod         ExtractionMethod           `json:"extraction_method"`
	ConfidenceScores         map[string]int             `json:"confidence_scores"`
	ExtractedValues          map[string]FieldExtraction `json:"extracted_values"`
	Demographics             *Demographics              `json:"patient_demographics,omitempty"`
	Quality                  *QualityReport             `json:"extraction_quality,omitempty"`
	ParsingWarnings          []string                   `json:"parsing_warnings"`
	ManualVerificationNeeded bool                       `json:"manual_verification_needed"`
}

type ReportMetadata struct {
	Source          string      `json:"source,omitempty"`
	CalculationDate string      `json:"calculation_date,omitempty"`
	InputValidation *Validation `json:"input_validation,omitempty"`
	Warnings        []string    `json:"warnings"`
}

// ReportResult is the full outcome for one processed report: calculated
// indices plus everything learned while parsing the source.
type ReportResult struct {
	Results        map[string]IndexResult `json:"results"`
	Summary        PanelSummary           `json:"summary"`
	Interpretation *Interpretation        `json:"interpretation,omitempty"`
	Parsing        *ParsingDetails        `json:"pdf_parsing,omitempty"`
	Metadata       ReportMetadata         `json:"metadata"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// FeedDocumentListing is one pending report document as advertised by
// the LIS results feed, before its content has been downloaded.
type FeedDocumentListing struct {
	UID         string
	Filename    string
	ContentType *string
	PatientRef  *string
	CollectedAt *string
	ReportedAt  *string
	RawJSON     string
}

type FeedDocumentRow struct {
	ID          int
	UID         string
	Filename    string
	ContentType *string
	PatientRef  *string
	CollectedAt *string
	ReportedAt  *string
	ContentSha  string
	RawRef      string
	Status      string
	FetchedAt   string
}

type ResultExportRow struct {
	ReportID         int
	SourceKind       string
	SourceRef        string
	ProcessedAt      string
	ExtractionMethod string
	OverallQuality   *string
	AvgConfidence    *float64
	ManualReview     bool
	PatientAge       *int
	PatientSex       *string
	TestDate         *string
	Neutrophils      *float64
	Lymphocytes      *float64
	Platelets        *float64
	Monocytes        *float64
	SII              *float64
	NLR              *float64
	PLR              *float64
	SIRI             *float64
	MLR              *float64
	PIV              *float64
	OverallRisk      *string
	OverallStatus    *string
}
