package connectors

import (
	"hemindex/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

// FetchResult splits a fetch into newly stored messages and ones the
// store had already seen, so callers can tell a quiet inbox from a
// connector that keeps returning the same unseen messages.
type FetchResult struct {
	Fetched int
	Stored  int
	Known   int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

func (s *FetchService) FetchAndStore(label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(label, max)
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return result, err
		}
		if _, err := s.store.Store(msg); err != nil {
			return result, err
		}
		if existing != nil {
			result.Known++
		} else {
			result.Stored++
		}
	}

	return result, nil
}
