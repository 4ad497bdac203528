package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"hemindex/internal"
	"hemindex/internal/storage"
)

type fakeConnector struct {
	label    string
	max      int
	messages []internal.FetchedMailMessage
}

func (f *fakeConnector) FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error) {
	f.label, f.max = label, max
	return f.messages, nil
}

func TestFetchAndStore(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "hemindex.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rawDir := filepath.Join(dir, "raw")
	raw1 := []byte("From: lab@example.com\r\nSubject: CBC A\r\n\r\nbody A\r\n")
	raw2 := []byte("From: lab@example.com\r\nSubject: CBC B\r\n\r\nbody B\r\n")
	conn := &fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<a@lab>", Subject: "CBC A", From: "lab@example.com", ReceivedAt: "2026-01-15T10:00:00Z", Raw: raw1},
		{Provider: "imap", MessageID: "<b@lab>", Subject: "CBC B", From: "lab@example.com", ReceivedAt: "2026-01-15T11:00:00Z", Raw: raw2},
	}}

	svc := NewFetchService(db, rawDir, conn)
	result, err := svc.FetchAndStore("Lab Reports", 50)
	if err != nil {
		t.Fatal(err)
	}
	if conn.label != "Lab Reports" || conn.max != 50 {
		t.Fatalf("connector args: label=%q max=%d", conn.label, conn.max)
	}
	if result.Fetched != 2 || result.Stored != 2 || result.Known != 0 {
		t.Fatalf("result=%+v", result)
	}

	sum := sha256.Sum256(raw1)
	rawPath := filepath.Join(rawDir, hex.EncodeToString(sum[:])+".eml")
	if _, err := os.Stat(rawPath); err != nil {
		t.Fatal(err)
	}

	rows, err := db.ListEmailsByStatus("fetched", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%+v", rows)
	}
	if rows[0].RawRef != rawPath {
		t.Fatalf("rawRef=%q", rows[0].RawRef)
	}

	// refetching the same inbox stores nothing new
	result, err = svc.FetchAndStore("Lab Reports", 50)
	if err != nil {
		t.Fatal(err)
	}
	if result.Fetched != 2 || result.Stored != 0 || result.Known != 2 {
		t.Fatalf("refetch result=%+v", result)
	}
	rows, err = db.ListEmailsByStatus("fetched", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows after refetch=%+v", rows)
	}
}
