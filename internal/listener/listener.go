// Package listener runs the ingestion loop: poll mail and the results
// feed, push whatever arrived through the pipeline, refresh exports.
package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hemindex/internal/config"
	"hemindex/internal/connectors"
	gmailconnector "hemindex/internal/connectors/gmail"
	imapconnector "hemindex/internal/connectors/imap"
	"hemindex/internal/labfeed"
	"hemindex/internal/pipeline"
	"hemindex/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
}

func NewService(db *storage.DB, cfg config.Config) *Service {
	return &Service{db: db, cfg: cfg}
}

// Run cycles until the context is cancelled. A failing cycle is logged
// and retried on the next tick rather than stopping the listener.
func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			log.Error().Err(err).Msg("listener cycle failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	processor := pipeline.NewProcessingService(s.db, s.cfg)

	fetched, stored := 0, 0
	if provider != "" && provider != "none" {
		mailConnector, err := s.makeConnector(provider)
		if err != nil {
			return err
		}
		fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
		fetchResult, err := fetchService.FetchAndStore(s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
		if err != nil {
			return err
		}
		fetched, stored = fetchResult.Fetched, fetchResult.Stored
	}

	feedStored := 0
	if strings.TrimSpace(s.cfg.FeedBaseURL) != "" {
		n, err := labfeed.NewSyncService(s.db, s.cfg).Sync(ctx)
		if err != nil {
			return err
		}
		feedStored = n
	}

	processedEmails, failedEmails, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}
	processedDocs, failedDocs, err := processor.ProcessFeedPending(ctx, s.cfg.MailListenerProcessBatch)
	if err != nil {
		return err
	}

	if s.cfg.MailListenerAutoExport && processedEmails+processedDocs > 0 {
		if err := s.exportResults(); err != nil {
			return err
		}
	}

	log.Info().
		Str("provider", provider).
		Int("fetched", fetched).
		Int("stored", stored).
		Int("feed_stored", feedStored).
		Int("processed", processedEmails+processedDocs).
		Int("failed", failedEmails+failedDocs).
		Msg("listener cycle done")
	return nil
}

// exportResults rewrites the cumulative results workbook, one row per
// processed report.
func (s *Service) exportResults() error {
	rows, err := s.db.GetExportRows()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", "results.xlsx")
	return pipeline.ExportRowsToXLSX(rows, outputPath)
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
