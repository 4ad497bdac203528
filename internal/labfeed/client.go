// Package labfeed pulls finalized CBC report documents from a LIS
// results-feed API so they can be run through the extraction pipeline
// without a mailbox in between.
package labfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hemindex/internal"
	"hemindex/internal/config"
	"hemindex/internal/util"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

type scrollPayload struct {
	Documents []map[string]any `json:"documents"`
	ScrollID  *string          `json:"scrollId"`
	Total     *int             `json:"total"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FeedTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.FeedRateLimitRPS),
	}
}

// ListPendingDocuments walks the feed's whole pending backlog.
func (c *Client) ListPendingDocuments(ctx context.Context) ([]internal.FeedDocumentListing, error) {
	return c.listDocumentsScroll(ctx, map[string]string{"status": "pending"})
}

// ListRecentDocuments lists pending documents registered within the
// last N hours.
func (c *Client) ListRecentDocuments(ctx context.Context, hours int) ([]internal.FeedDocumentListing, error) {
	return c.listDocumentsScroll(ctx, map[string]string{
		"status": "pending",
		"hours":  strconv.Itoa(hours),
	})
}

// DownloadDocument fetches the raw bytes of one report document.
func (c *Client) DownloadDocument(ctx context.Context, uid string) ([]byte, error) {
	return c.fetch(ctx, "documents/"+url.PathEscape(uid)+"/content", map[string]string{}, "*/*")
}

func (c *Client) listDocumentsScroll(ctx context.Context, params map[string]string) ([]internal.FeedDocumentListing, error) {
	all := make([]internal.FeedDocumentListing, 0)
	seen := map[string]struct{}{}
	var scrollID string

	for {
		query := map[string]string{}
		for k, v := range params {
			query[k] = v
		}
		if scrollID != "" {
			query["scrollId"] = scrollID
		}

		body, err := c.fetchJSON(ctx, "documents/scroll", query)
		if err != nil {
			return nil, err
		}

		var payload scrollPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}

		for _, raw := range payload.Documents {
			listing, err := toDocumentListing(raw)
			if err != nil {
				continue
			}
			all = append(all, listing)
		}

		if payload.ScrollID == nil || *payload.ScrollID == "" || len(payload.Documents) == 0 {
			break
		}
		if _, ok := seen[*payload.ScrollID]; ok {
			break
		}
		seen[*payload.ScrollID] = struct{}{}
		scrollID = *payload.ScrollID
	}

	return all, nil
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	body, err := c.fetch(ctx, endpoint, params, "application/json")
	if err != nil {
		return nil, err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, err
	}
	if !apiResp.Success {
		return nil, fmt.Errorf("lab feed api unsuccessful: %s", string(apiResp.Errors))
	}
	return apiResp.Data, nil
}

func (c *Client) fetch(ctx context.Context, endpoint string, params map[string]string, accept string) ([]byte, error) {
	if strings.TrimSpace(c.cfg.FeedAPIToken) == "" {
		return nil, errors.New("missing LAB_FEED_API_TOKEN")
	}

	baseURL := strings.TrimRight(c.cfg.FeedBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		c.limiter.WaitTurn()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.FeedAPIToken)
		req.Header.Set("Accept", accept)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("lab feed status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("lab feed api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("lab feed request failed")
	}
	return nil, lastErr
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toDocumentListing(raw map[string]any) (internal.FeedDocumentListing, error) {
	uid, _ := raw["uid"].(string)
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return internal.FeedDocumentListing{}, errors.New("empty uid")
	}

	filename, _ := raw["filename"].(string)
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = uid + ".pdf"
	}

	rawJSON, _ := json.Marshal(raw)
	listing := internal.FeedDocumentListing{
		UID:      uid,
		Filename: filename,
		RawJSON:  string(rawJSON),
	}
	listing.ContentType = toStringPtr(raw["contentType"])
	listing.PatientRef = toStringPtr(raw["patientRef"])
	listing.CollectedAt = toStringPtr(raw["collectedAt"])
	listing.ReportedAt = toStringPtr(raw["reportedAt"])

	return listing, nil
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}
