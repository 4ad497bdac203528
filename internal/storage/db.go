package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	_ "modernc.org/sqlite"

	"hemindex/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS reports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  emailId INTEGER,
  traceId TEXT NOT NULL,
  sourceKind TEXT NOT NULL,
  sourceRef TEXT NOT NULL,
  extractionMethod TEXT NOT NULL,
  overallQuality TEXT,
  avgConfidence REAL,
  manualReview INTEGER NOT NULL DEFAULT 0,
  patientAge INTEGER,
  patientSex TEXT,
  testDate TEXT,
  overallRisk TEXT,
  overallStatus TEXT,
  resultJson TEXT NOT NULL,
  processedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_reports_emailId ON reports(emailId);
CREATE INDEX IF NOT EXISTS idx_reports_sourceRef ON reports(sourceRef);

CREATE TABLE IF NOT EXISTS report_fields (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reportId INTEGER NOT NULL,
  field TEXT NOT NULL,
  value REAL NOT NULL,
  unit TEXT,
  confidence INTEGER NOT NULL,
  rawText TEXT NOT NULL,
  matchedVariation TEXT NOT NULL,
  refMin REAL,
  refMax REAL,
  UNIQUE(reportId, field),
  FOREIGN KEY(reportId) REFERENCES reports(id)
);

CREATE TABLE IF NOT EXISTS report_demographics (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reportId INTEGER NOT NULL,
  field TEXT NOT NULL,
  value TEXT NOT NULL,
  confidence INTEGER NOT NULL,
  rawText TEXT NOT NULL,
  pattern TEXT NOT NULL,
  UNIQUE(reportId, field),
  FOREIGN KEY(reportId) REFERENCES reports(id)
);

CREATE TABLE IF NOT EXISTS report_indices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  reportId INTEGER NOT NULL,
  indexName TEXT NOT NULL,
  value REAL NOT NULL,
  riskLevel TEXT NOT NULL,
  interpretation TEXT NOT NULL,
  UNIQUE(reportId, indexName),
  FOREIGN KEY(reportId) REFERENCES reports(id)
);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS feed_documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  uid TEXT NOT NULL UNIQUE,
  filename TEXT NOT NULL,
  contentType TEXT,
  patientRef TEXT,
  collectedAt TEXT,
  reportedAt TEXT,
  contentSha TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  fetchedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_feed_documents_status ON feed_documents(status);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  emailId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReportRecord is one processed report heading into the reports table.
// Age and Sex carry the resolved values (explicit flags win over extracted
// demographics); the raw extraction provenance goes to report_demographics.
type ReportRecord struct {
	EmailID    *int
	TraceID    string
	SourceKind internal.SourceKind
	SourceRef  string
	Age        *int
	Sex        *string
	Result     internal.ReportResult
}

func (d *DB) InsertReport(rec ReportRecord) (int64, error) {
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return 0, err
	}

	method := string(internal.ExtractionManual)
	var quality *string
	var avgConfidence *float64
	manualReview := false
	var testDate *string
	if p := rec.Result.Parsing; p != nil {
		method = string(p.ExtractionMethod)
		manualReview = p.ManualVerificationNeeded
		if p.Quality != nil {
			q := string(p.Quality.OverallQuality)
			quality = &q
			avg := p.Quality.AverageConfidence
			avgConfidence = &avg
			if p.Quality.ManualReviewRecommended {
				manualReview = true
			}
		}
		if p.Demographics != nil {
			testDate = p.Demographics.TestDate.Value
		}
	}
	var overallRisk *string
	if rec.Result.Interpretation != nil {
		overallRisk = &rec.Result.Interpretation.RiskStratification.OverallRiskLevel
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
INSERT INTO reports (
  emailId, traceId, sourceKind, sourceRef, extractionMethod,
  overallQuality, avgConfidence, manualReview,
  patientAge, patientSex, testDate, overallRisk, overallStatus, resultJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, rec.EmailID, rec.TraceID, string(rec.SourceKind), rec.SourceRef, method,
		quality, avgConfidence, boolToInt(manualReview),
		rec.Age, rec.Sex, testDate, overallRisk, rec.Result.Summary.OverallStatus, string(resultJSON))
	if err != nil {
		return 0, err
	}
	reportID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if p := rec.Result.Parsing; p != nil {
		for _, field := range internal.FieldOrder {
			fe, ok := p.ExtractedValues[field]
			if !ok || !fe.Found() {
				continue
			}
			var refMin, refMax *float64
			if fe.ReferenceRange != nil {
				refMin, refMax = &fe.ReferenceRange.Min, &fe.ReferenceRange.Max
			}
			if _, err := tx.Exec(`
INSERT INTO report_fields (reportId, field, value, unit, confidence, rawText, matchedVariation, refMin, refMax)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, reportID, field, *fe.Value, fe.Unit, fe.Confidence, fe.RawText, fe.MatchedVariation, refMin, refMax); err != nil {
				return 0, err
			}
		}

		if demo := p.Demographics; demo != nil {
			type demoRow struct {
				field      string
				value      *string
				confidence int
				rawText    string
				pattern    string
			}
			rows := []demoRow{}
			if demo.Age.Value != nil {
				v := strconv.Itoa(*demo.Age.Value)
				rows = append(rows, demoRow{"age", &v, demo.Age.Confidence, demo.Age.RawText, demo.Age.Pattern})
			}
			if demo.Sex.Value != nil {
				rows = append(rows, demoRow{"sex", demo.Sex.Value, demo.Sex.Confidence, demo.Sex.RawText, demo.Sex.Pattern})
			}
			if demo.TestDate.Value != nil {
				rows = append(rows, demoRow{"test_date", demo.TestDate.Value, demo.TestDate.Confidence, demo.TestDate.RawText, demo.TestDate.Pattern})
			}
			for _, r := range rows {
				if _, err := tx.Exec(`
INSERT INTO report_demographics (reportId, field, value, confidence, rawText, pattern)
VALUES (?, ?, ?, ?, ?, ?)
`, reportID, r.field, *r.value, r.confidence, r.rawText, r.pattern); err != nil {
					return 0, err
				}
			}
		}
	}

	names := make([]string, 0, len(rec.Result.Results))
	for name := range rec.Result.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ir := rec.Result.Results[name]
		if _, err := tx.Exec(`
INSERT INTO report_indices (reportId, indexName, value, riskLevel, interpretation)
VALUES (?, ?, ?, ?, ?)
`, reportID, name, ir.Value, string(ir.RiskLevel), ir.Interpretation); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return reportID, nil
}

// ClearEmailReports removes every report derived from an email so the
// message can be reprocessed without stale child rows.
func (d *DB) ClearEmailReports(emailID int) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.Query(`SELECT id FROM reports WHERE emailId = ?`, emailID)
	if err != nil {
		return err
	}
	var reportIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return err
		}
		reportIDs = append(reportIDs, id)
	}
	_ = rows.Close()

	for _, id := range reportIDs {
		for _, table := range []string{"report_fields", "report_demographics", "report_indices"} {
			if _, err := tx.Exec(`DELETE FROM `+table+` WHERE reportId = ?`, id); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(`DELETE FROM reports WHERE id = ?`, id); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) GetReportResult(reportID int64) (internal.ReportResult, error) {
	var resultJSON string
	err := d.conn.QueryRow(`SELECT resultJson FROM reports WHERE id = ?`, reportID).Scan(&resultJSON)
	if err != nil {
		return internal.ReportResult{}, err
	}
	var result internal.ReportResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return internal.ReportResult{}, err
	}
	return result, nil
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// UpsertFeedDocument records a downloaded feed document. Re-listing an
// already known uid refreshes its metadata without resetting status, so
// processed documents are not re-queued by a backlog refresh.
func (d *DB) UpsertFeedDocument(doc internal.FeedDocumentRow) (internal.FeedDocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO feed_documents (uid, filename, contentType, patientRef, collectedAt, reportedAt, contentSha, rawRef, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(uid) DO UPDATE SET
  filename=excluded.filename,
  contentType=excluded.contentType,
  patientRef=excluded.patientRef,
  collectedAt=excluded.collectedAt,
  reportedAt=excluded.reportedAt,
  contentSha=excluded.contentSha,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, doc.UID, doc.Filename, doc.ContentType, doc.PatientRef, doc.CollectedAt, doc.ReportedAt, doc.ContentSha, doc.RawRef, doc.Status)
	if err != nil {
		return internal.FeedDocumentRow{}, err
	}

	row, err := d.GetFeedDocumentByUID(doc.UID)
	if err != nil {
		return internal.FeedDocumentRow{}, err
	}
	if row == nil {
		return internal.FeedDocumentRow{}, errors.New("failed to upsert feed document")
	}
	return *row, nil
}

func (d *DB) GetFeedDocumentByUID(uid string) (*internal.FeedDocumentRow, error) {
	var row internal.FeedDocumentRow
	err := d.conn.QueryRow(`
SELECT id, uid, filename, contentType, patientRef, collectedAt, reportedAt, contentSha, rawRef, status, fetchedAt
FROM feed_documents WHERE uid = ?
`, uid).Scan(
		&row.ID, &row.UID, &row.Filename, &row.ContentType, &row.PatientRef, &row.CollectedAt, &row.ReportedAt, &row.ContentSha, &row.RawRef, &row.Status, &row.FetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListFeedDocumentsByStatus(status string, limit int) ([]internal.FeedDocumentRow, error) {
	rows, err := d.conn.Query(`
SELECT id, uid, filename, contentType, patientRef, collectedAt, reportedAt, contentSha, rawRef, status, fetchedAt
FROM feed_documents WHERE status = ? ORDER BY fetchedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.FeedDocumentRow
	for rows.Next() {
		var row internal.FeedDocumentRow
		if err := rows.Scan(&row.ID, &row.UID, &row.Filename, &row.ContentType, &row.PatientRef, &row.CollectedAt, &row.ReportedAt, &row.ContentSha, &row.RawRef, &row.Status, &row.FetchedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateFeedDocumentStatus(docID int, status string) error {
	_, err := d.conn.Exec(`UPDATE feed_documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, docID)
	return err
}

func (d *DB) InsertRun(traceID string, emailID *int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, emailId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, emailID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// GetExportRows flattens reports with their per-field values and index
// results into one row per report, pivoting the child tables.
func (d *DB) GetExportRows() ([]internal.ResultExportRow, error) {
	rows, err := d.conn.Query(`
SELECT
  r.id,
  r.sourceKind,
  r.sourceRef,
  r.processedAt,
  r.extractionMethod,
  r.overallQuality,
  r.avgConfidence,
  r.manualReview,
  r.patientAge,
  r.patientSex,
  r.testDate,
  MAX(CASE WHEN f.field = 'neutrophils' THEN f.value END),
  MAX(CASE WHEN f.field = 'lymphocytes' THEN f.value END),
  MAX(CASE WHEN f.field = 'platelets' THEN f.value END),
  MAX(CASE WHEN f.field = 'monocytes' THEN f.value END),
  MAX(CASE WHEN i.indexName = 'sii' THEN i.value END),
  MAX(CASE WHEN i.indexName = 'nlr' THEN i.value END),
  MAX(CASE WHEN i.indexName = 'plr' THEN i.value END),
  MAX(CASE WHEN i.indexName = 'siri' THEN i.value END),
  MAX(CASE WHEN i.indexName = 'mlr' THEN i.value END),
  MAX(CASE WHEN i.indexName = 'piv' THEN i.value END),
  r.overallRisk,
  r.overallStatus
FROM reports r
LEFT JOIN report_fields f ON f.reportId = r.id
LEFT JOIN report_indices i ON i.reportId = r.id
GROUP BY r.id
ORDER BY r.id ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ResultExportRow
	for rows.Next() {
		var row internal.ResultExportRow
		if err := rows.Scan(
			&row.ReportID,
			&row.SourceKind,
			&row.SourceRef,
			&row.ProcessedAt,
			&row.ExtractionMethod,
			&row.OverallQuality,
			&row.AvgConfidence,
			&row.ManualReview,
			&row.PatientAge,
			&row.PatientSex,
			&row.TestDate,
			&row.Neutrophils,
			&row.Lymphocytes,
			&row.Platelets,
			&row.Monocytes,
			&row.SII,
			&row.NLR,
			&row.PLR,
			&row.SIRI,
			&row.MLR,
			&row.PIV,
			&row.OverallRisk,
			&row.OverallStatus,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
