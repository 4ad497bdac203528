package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hemindex/internal"
	"hemindex/internal/config"
	"hemindex/internal/extract"
	"hemindex/internal/indices"
	"hemindex/internal/storage"
)

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	ex      *extract.Extractor
	sources *SourceReader
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{
		db:      db,
		cfg:     cfg,
		ex:      extract.New(cfg),
		sources: NewSourceReader(cfg),
	}
}

// Options carry explicit patient context for a processing run. Explicit
// values always win over demographics extracted from the report text.
type Options struct {
	PatientAge *int
	PatientSex *string
}

type ProcessOutcome struct {
	EmailID  int
	ReportID int64
	Status   string
}

// ProcessText runs the full extraction pipeline over report text:
// section narrowing, CBC extraction, quality and physiological
// validation, demographics, index calculation and interpretation.
func (s *ProcessingService) ProcessText(text, sourceRef string, method internal.ExtractionMethod, opts Options) (internal.ReportResult, error) {
	if strings.TrimSpace(text) == "" {
		return internal.ReportResult{}, &ParseError{Message: "No text could be extracted from report", MissingFields: missingAll()}
	}

	section := extract.FindCBCSection(text)
	values := s.ex.ExtractCBCValues(section)
	if len(values) == 0 {
		return internal.ReportResult{}, &ParseError{
			Message:       "No CBC values found in report",
			ExtractedText: clip(section, 1000),
			MissingFields: missingAll(),
		}
	}

	quality := s.ex.ValidateExtractionQuality(values)
	validation := indices.ValidateExtractedValues(values)

	// demographics live in the report header, outside the CBC section
	demo := extract.ExtractPatientDemographics(text)
	demoCheck := s.ex.ValidateDemographics(demo)

	if !validation.Valid {
		missing := []string{}
		for _, field := range internal.RequiredFields {
			fe, ok := values[field]
			if !ok || !fe.Found() {
				missing = append(missing, field)
				continue
			}
			if check, ok := validation.Individual[field]; ok && !check.Valid {
				missing = append(missing, field)
			}
		}
		return internal.ReportResult{}, &ParseError{
			Message:       fmt.Sprintf("Validation failed: %s", strings.Join(validation.Errors, "; ")),
			ExtractedText: clip(section, 1000),
			MissingFields: missing,
		}
	}

	neutrophils := *values["neutrophils"].Value
	lymphocytes := *values["lymphocytes"].Value
	platelets := *values["platelets"].Value
	var monocytes *float64
	if fe, ok := values["monocytes"]; ok && fe.Found() {
		monocytes = fe.Value
	}

	result, err := indices.CalculateIndices(neutrophils, lymphocytes, platelets, monocytes)
	if err != nil {
		return internal.ReportResult{}, err
	}

	age, sex := resolveContext(demo, opts)
	if age != nil || sex != nil {
		interp := indices.InterpretResults(result.Results, age, sex)
		result.Interpretation = &interp
	}

	confidences := make(map[string]int, len(values))
	for field, fe := range values {
		confidences[field] = fe.Confidence
	}
	parsingWarnings := append(append([]string{}, validation.Warnings...), demoCheck.Warnings...)
	result.Parsing = &internal.ParsingDetails{
		ExtractionMethod:         method,
		ConfidenceScores:         confidences,
		ExtractedValues:          values,
		Demographics:             &demo,
		Quality:                  &quality,
		ParsingWarnings:          parsingWarnings,
		ManualVerificationNeeded: validation.ManualVerificationNeeded || demoCheck.ManualVerificationNeeded,
	}
	result.Metadata.Source = sourceRef
	result.Metadata.Warnings = append(result.Metadata.Warnings, indices.CheckReferenceRanges(values)...)

	return result, nil
}

// ProcessManual calculates indices from already-normalized counts in
// cells/µL, the path for values typed in by an operator.
func (s *ProcessingService) ProcessManual(neutrophils, lymphocytes, platelets float64, monocytes *float64, opts Options) (internal.ReportResult, error) {
	result, err := indices.CalculateIndices(neutrophils, lymphocytes, platelets, monocytes)
	if err != nil {
		return internal.ReportResult{}, err
	}
	if opts.PatientAge != nil || opts.PatientSex != nil {
		interp := indices.InterpretResults(result.Results, opts.PatientAge, opts.PatientSex)
		result.Interpretation = &interp
	}
	result.Metadata.Source = "manual"
	return result, nil
}

// ProcessFile reads a report file, processes the first rendition that
// yields a valid panel and persists the result when a DB is attached.
func (s *ProcessingService) ProcessFile(ctx context.Context, path string, opts Options) (internal.ReportResult, error) {
	docs, err := s.sources.ReadFile(ctx, path)
	if err != nil {
		return internal.ReportResult{}, err
	}
	result, doc, err := s.processDocuments(docs, opts)
	if err != nil {
		return internal.ReportResult{}, err
	}
	if s.db != nil {
		if _, err := s.persist(nil, doc, result, opts); err != nil {
			log.Error().Str("source", doc.Ref).Err(err).Msg("failed to persist report")
		}
	}
	return result, nil
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string, opts Options) (ProcessOutcome, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessOutcome{}, err
	}
	return s.ProcessEmail(ctx, email, opts)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (processed, failed int, err error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		outcome, err := s.ProcessEmail(ctx, email, Options{})
		if err != nil {
			return processed, failed, err
		}
		if outcome.Status == "processed" {
			processed++
		} else {
			failed++
		}
	}
	return processed, failed, nil
}

// ProcessFeedPending runs stored feed documents through the pipeline.
// A document that yields no panel is marked failed and skipped; only
// infrastructure errors abort the batch.
func (s *ProcessingService) ProcessFeedPending(ctx context.Context, limit int) (processed, failed int, err error) {
	pending, err := s.db.ListFeedDocumentsByStatus("pending", limit)
	if err != nil {
		return 0, 0, err
	}
	for _, doc := range pending {
		ok, err := s.processFeedDocument(ctx, doc)
		if err != nil {
			return processed, failed, err
		}
		if ok {
			processed++
		} else {
			failed++
		}
	}
	return processed, failed, nil
}

func (s *ProcessingService) processFeedDocument(ctx context.Context, doc internal.FeedDocumentRow) (bool, error) {
	start := time.Now()
	docs, err := s.sources.ReadFile(ctx, doc.RawRef)
	if err == nil {
		var result internal.ReportResult
		var chosen Document
		result, chosen, err = s.processDocuments(docs, Options{})
		if err == nil {
			reportID, err := s.persist(nil, chosen, result, Options{})
			if err != nil {
				return false, err
			}
			if err := s.db.UpdateFeedDocumentStatus(doc.ID, "processed"); err != nil {
				return false, err
			}
			s.writeReportFiles(reportID, result)
			_ = s.db.InsertRun(traceID(), nil, runTimings(start), map[string]int{"documents": len(docs), "processed": 1})
			log.Info().Str("uid", doc.UID).Int64("report_id", reportID).Msg("feed document processed")
			return true, nil
		}
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) && !os.IsNotExist(err) {
		return false, err
	}
	if dbErr := s.db.UpdateFeedDocumentStatus(doc.ID, "failed"); dbErr != nil {
		return false, dbErr
	}
	_ = s.db.InsertRun(traceID(), nil, runTimings(start), map[string]int{"documents": 0, "processed": 0})
	log.Warn().Str("uid", doc.UID).Err(err).Msg("feed document yielded no report")
	return false, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow, opts Options) (ProcessOutcome, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessOutcome{}, err
	}

	docs, subject, err := s.sources.EmailDocuments(ctx, raw)
	if err != nil {
		return ProcessOutcome{}, err
	}
	subject = firstNonEmpty(subject, email.Subject)

	if err := s.db.ClearEmailReports(email.ID); err != nil {
		return ProcessOutcome{}, err
	}

	if len(docs) == 0 {
		_ = s.db.UpdateEmailStatus(email.ID, "skipped")
		_ = s.db.InsertRun(traceID(), &email.ID, runTimings(start), map[string]int{"documents": 0, "processed": 0})
		log.Info().Int("email_id", email.ID).Str("subject", subject).Msg("no parseable parts, skipped")
		return ProcessOutcome{EmailID: email.ID, Status: "skipped"}, nil
	}

	result, doc, err := s.processDocuments(docs, opts)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			_ = s.db.UpdateEmailStatus(email.ID, "failed")
			_ = s.db.InsertRun(traceID(), &email.ID, runTimings(start), map[string]int{"documents": len(docs), "processed": 0})
			log.Warn().Int("email_id", email.ID).Str("subject", subject).Str("reason", perr.Message).Msg("no report extracted from email")
			return ProcessOutcome{EmailID: email.ID, Status: "failed"}, nil
		}
		return ProcessOutcome{}, err
	}

	reportID, err := s.persist(&email.ID, doc, result, opts)
	if err != nil {
		return ProcessOutcome{}, err
	}
	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		return ProcessOutcome{}, err
	}
	s.writeReportFiles(reportID, result)
	_ = s.db.InsertRun(traceID(), &email.ID, runTimings(start), map[string]int{"documents": len(docs), "processed": 1})
	log.Info().Int("email_id", email.ID).Int64("report_id", reportID).Str("source", doc.Ref).Msg("email processed")

	return ProcessOutcome{EmailID: email.ID, ReportID: reportID, Status: "processed"}, nil
}

func (s *ProcessingService) processDocuments(docs []Document, opts Options) (internal.ReportResult, Document, error) {
	var lastErr error
	for _, doc := range docs {
		result, err := s.ProcessText(doc.Text, doc.Ref, doc.Method, opts)
		if err != nil {
			lastErr = err
			log.Debug().Str("source", doc.Ref).Err(err).Msg("document yielded no panel")
			continue
		}
		return result, doc, nil
	}
	if lastErr == nil {
		lastErr = &ParseError{Message: "No text could be extracted from report", MissingFields: missingAll()}
	}
	return internal.ReportResult{}, Document{}, lastErr
}

// writeReportFiles drops the clinical text and JSON artifacts for a
// persisted report under the output dir. Failures only log; the report
// row is already durable.
func (s *ProcessingService) writeReportFiles(reportID int64, result internal.ReportResult) {
	dir := filepath.Join(s.cfg.OutputDir, "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error().Err(err).Msg("failed to create reports dir")
		return
	}
	for format, ext := range map[string]string{"text": ".txt", "json": ".json"} {
		content, err := GenerateReport(result, format)
		if err != nil {
			log.Error().Str("format", format).Err(err).Msg("failed to render report")
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf("report_%d%s", reportID, ext))
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			log.Error().Str("path", path).Err(err).Msg("failed to write report file")
		}
	}
}

func (s *ProcessingService) persist(emailID *int, doc Document, result internal.ReportResult, opts Options) (int64, error) {
	demo := internal.Demographics{}
	if result.Parsing != nil && result.Parsing.Demographics != nil {
		demo = *result.Parsing.Demographics
	}
	age, sex := resolveContext(demo, opts)
	return s.db.InsertReport(storage.ReportRecord{
		EmailID:    emailID,
		TraceID:    traceID(),
		SourceKind: doc.Kind,
		SourceRef:  doc.Ref,
		Age:        age,
		Sex:        sex,
		Result:     result,
	})
}

func resolveContext(demo internal.Demographics, opts Options) (*int, *string) {
	age := opts.PatientAge
	if age == nil {
		age = demo.Age.Value
	}
	sex := opts.PatientSex
	if sex == nil {
		sex = demo.Sex.Value
	}
	return age, sex
}

func runTimings(start time.Time) map[string]float64 {
	return map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func clip(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}
