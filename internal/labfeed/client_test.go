package labfeed

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"hemindex/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func testClient(rt roundTripFunc) *Client {
	cfg, _ := config.Load()
	cfg.FeedAPIToken = "test-token"
	cfg.FeedBaseURL = "https://feed.example.test/api/v1"
	cfg.FeedRateLimitRPS = 1000
	c := NewClient(cfg)
	c.httpClient.Transport = rt
	return c
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func TestListPendingDocumentsScroll(t *testing.T) {
	calls := 0
	c := testClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if req.URL.Path != "/api/v1/documents/scroll" {
			t.Fatalf("path=%q", req.URL.Path)
		}
		if got := req.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("auth=%q", got)
		}
		if got := req.URL.Query().Get("status"); got != "pending" {
			t.Fatalf("status=%q", got)
		}

		switch calls {
		case 1:
			// transient failure, the client retries
			return response(500, "oops"), nil
		case 2:
			if req.URL.Query().Get("scrollId") != "" {
				t.Fatalf("unexpected scrollId on first page: %q", req.URL.RawQuery)
			}
			return response(200, `{"success":true,"data":{
				"documents":[
					{"uid":"doc-1","filename":"cbc1.pdf","patientRef":"P-1"},
					{"uid":"doc-2"}
				],
				"scrollId":"s1"}}`), nil
		case 3:
			if got := req.URL.Query().Get("scrollId"); got != "s1" {
				t.Fatalf("scrollId=%q", got)
			}
			return response(200, `{"success":true,"data":{
				"documents":[{"uid":"doc-3","filename":"cbc3.html"}],
				"scrollId":null}}`), nil
		default:
			t.Fatalf("unexpected call %d", calls)
			return nil, nil
		}
	})

	listings, err := c.ListPendingDocuments(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d", calls)
	}
	if len(listings) != 3 {
		t.Fatalf("listings=%d", len(listings))
	}
	if listings[0].UID != "doc-1" || listings[0].PatientRef == nil || *listings[0].PatientRef != "P-1" {
		t.Fatalf("first=%+v", listings[0])
	}
	// missing filename falls back to uid.pdf
	if listings[1].Filename != "doc-2.pdf" {
		t.Fatalf("second filename=%q", listings[1].Filename)
	}
	if listings[2].Filename != "cbc3.html" {
		t.Fatalf("third filename=%q", listings[2].Filename)
	}
}

func TestListRecentDocumentsHours(t *testing.T) {
	c := testClient(func(req *http.Request) (*http.Response, error) {
		if got := req.URL.Query().Get("hours"); got != "48" {
			t.Fatalf("hours=%q", got)
		}
		return response(200, `{"success":true,"data":{"documents":[],"scrollId":null}}`), nil
	})

	listings, err := c.ListRecentDocuments(context.Background(), 48)
	if err != nil {
		t.Fatal(err)
	}
	if len(listings) != 0 {
		t.Fatalf("listings=%+v", listings)
	}
}

func TestDownloadDocument(t *testing.T) {
	c := testClient(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/documents/doc-1/content" {
			t.Fatalf("path=%q", req.URL.Path)
		}
		if got := req.Header.Get("Accept"); got != "*/*" {
			t.Fatalf("accept=%q", got)
		}
		return response(200, "%PDF-1.4 raw bytes"), nil
	})

	content, err := c.DownloadDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != "%PDF-1.4 raw bytes" {
		t.Fatalf("content=%q", content)
	}
}

func TestFetchMissingToken(t *testing.T) {
	c := testClient(func(req *http.Request) (*http.Response, error) {
		t.Fatal("request should not be sent without a token")
		return nil, nil
	})
	c.cfg.FeedAPIToken = ""

	_, err := c.ListPendingDocuments(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing LAB_FEED_API_TOKEN") {
		t.Fatalf("err=%v", err)
	}
}

func TestFetchPermanentError(t *testing.T) {
	c := testClient(func(req *http.Request) (*http.Response, error) {
		return response(404, "not found"), nil
	})

	_, err := c.DownloadDocument(context.Background(), "gone")
	if err == nil || !strings.Contains(err.Error(), "lab feed api error: status=404") {
		t.Fatalf("err=%v", err)
	}
}

func TestFetchUnsuccessfulEnvelope(t *testing.T) {
	c := testClient(func(req *http.Request) (*http.Response, error) {
		return response(200, `{"success":false,"errors":{"code":"EXPIRED_TOKEN"}}`), nil
	})

	_, err := c.ListPendingDocuments(context.Background())
	if err == nil || !strings.Contains(err.Error(), "lab feed api unsuccessful") {
		t.Fatalf("err=%v", err)
	}
}
