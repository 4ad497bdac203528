package labfeed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hemindex/internal"
	"hemindex/internal/config"
	"hemindex/internal/storage"
)

type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg}
}

// Sync picks the right strategy on its own: a full backlog walk when the
// feed has never been synced, otherwise the configured lookback window
// plus a periodic backlog refresh to close gaps.
func (s *SyncService) Sync(ctx context.Context) (int, error) {
	last, err := s.db.GetMetadata("labfeed.last_sync")
	if err != nil {
		return 0, err
	}
	if last == nil {
		return s.InitialSync(ctx)
	}
	return s.IncrementalSync(ctx)
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	listings, err := s.client.ListPendingDocuments(ctx)
	if err != nil {
		return 0, err
	}
	stored, err := s.ingest(ctx, listings)
	if err != nil {
		return stored, err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_ = s.db.SetMetadata("labfeed.last_initial_sync", now)
	_ = s.db.SetMetadata("labfeed.last_sync", now)
	// a full walk doubles as a backlog refresh
	_ = s.db.SetMetadata("labfeed.last_backlog_refresh", now)
	return stored, nil
}

func (s *SyncService) IncrementalSync(ctx context.Context) (int, error) {
	listings, err := s.client.ListRecentDocuments(ctx, s.cfg.FeedLookbackHours)
	if err != nil {
		return 0, err
	}
	stored, err := s.ingest(ctx, listings)
	if err != nil {
		return stored, err
	}
	_ = s.db.SetMetadata("labfeed.last_sync", time.Now().UTC().Format(time.RFC3339))
	if err := s.refreshBacklogIfNeeded(ctx); err != nil {
		return stored, err
	}
	return stored, nil
}

func (s *SyncService) refreshBacklogIfNeeded(ctx context.Context) error {
	const key = "labfeed.last_backlog_refresh"
	last, err := s.db.GetMetadata(key)
	if err != nil {
		return err
	}

	if last != nil {
		if parsed, err := time.Parse(time.RFC3339, *last); err == nil {
			if time.Since(parsed) < time.Duration(s.cfg.FeedRefreshDays)*24*time.Hour {
				return nil
			}
		}
	}

	listings, err := s.client.ListPendingDocuments(ctx)
	if err != nil {
		return err
	}
	if _, err := s.ingest(ctx, listings); err != nil {
		return err
	}
	return s.db.SetMetadata(key, time.Now().UTC().Format(time.RFC3339))
}

// ingest downloads each unseen document and records it as pending.
// Documents already on disk are skipped; a failed download skips only
// that document so one bad entry cannot stall the feed.
func (s *SyncService) ingest(ctx context.Context, listings []internal.FeedDocumentListing) (int, error) {
	stored := 0
	for _, listing := range listings {
		existing, err := s.db.GetFeedDocumentByUID(listing.UID)
		if err != nil {
			return stored, err
		}
		if existing != nil {
			if _, statErr := os.Stat(existing.RawRef); statErr == nil {
				continue
			}
		}

		content, err := s.client.DownloadDocument(ctx, listing.UID)
		if err != nil {
			log.Warn().Str("uid", listing.UID).Err(err).Msg("feed document download failed")
			continue
		}

		sum := sha256.Sum256(content)
		sha := hex.EncodeToString(sum[:])
		rawRef := filepath.Join(s.cfg.FeedDocDir, sha+storageExt(listing.Filename))
		if err := os.MkdirAll(s.cfg.FeedDocDir, 0o755); err != nil {
			return stored, err
		}
		if _, statErr := os.Stat(rawRef); statErr != nil {
			if err := os.WriteFile(rawRef, content, 0o644); err != nil {
				return stored, err
			}
		}

		if _, err := s.db.UpsertFeedDocument(internal.FeedDocumentRow{
			UID:         listing.UID,
			Filename:    listing.Filename,
			ContentType: listing.ContentType,
			PatientRef:  listing.PatientRef,
			CollectedAt: listing.CollectedAt,
			ReportedAt:  listing.ReportedAt,
			ContentSha:  sha,
			RawRef:      rawRef,
			Status:      "pending",
		}); err != nil {
			return stored, err
		}
		if existing == nil {
			stored++
		}
	}
	return stored, nil
}

func storageExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ".pdf"
	}
	return ext
}
