package sejm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"SejmAudit/internal/config"
	"SejmAudit/internal/domain"
	"SejmAudit/internal/infrastructure/fetch"
)

func testServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/term10/processes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"number": 471, "title": "o zmianie ustawy o finansach publicznych", "state": "zamknięty"},
			{"number": "472", "title": "o weteranach", "state": "w toku"},
			{"title": "rekord bez numeru"}
		]`))
	})

	mux.HandleFunc("/term10/processes/471", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"number": 471,
			"title": "o zmianie ustawy o finansach publicznych",
			"description": "projekt poselski",
			"documentType": "projekt ustawy",
			"state": "zamknięty",
			"sponsorCount": 15,
			"signatories": ["A. Nowak", "B. Kowalska"],
			"prints": [471],
			"stages": [
				{"stageName": "Projekt wpłynął do Sejmu", "date": "2024-01-10", "printNumber": 471},
				{"stageName": "Głosowanie", "date": "2024-03-01", "children": [
					{"number": "512", "title": "projekt powiązany"}
				]}
			]
		}`))
	})

	mux.HandleFunc("/term10/prints/471", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"number": 471,
			"title": "Druk nr 471",
			"documentDate": "2024-01-09",
			"deliveryDate": "2024-01-10",
			"attachments": ["471.pdf", "471 uzasadnienie.docx"]
		}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	cfg := config.FetchConfig{MaxAttempts: 2, TimeoutSeconds: 5, RatePerSecond: 1000, RateBurst: 10}
	return NewClient(server.URL, fetch.New(cfg, server.Client(), nil), nil)
}

func TestListProcesses(t *testing.T) {
	t.Parallel()

	server := testServer(t)
	headers, err := testClient(t, server).ListProcesses(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListProcesses error: %v", err)
	}
	// Numberless records are dropped; numeric and string numbers both survive.
	if len(headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(headers))
	}
	if headers[0].ID.Number != "471" || headers[1].ID.Number != "472" {
		t.Fatalf("unexpected headers: %+v", headers)
	}
	if headers[0].Status != "zamknięty" {
		t.Fatalf("status not carried over: %+v", headers[0])
	}
}

func TestProcessMetadataAssemblesPrints(t *testing.T) {
	t.Parallel()

	server := testServer(t)
	raw, err := testClient(t, server).ProcessMetadata(context.Background(), domain.ProcessID{Term: 10, Number: "471"})
	if err != nil {
		t.Fatalf("ProcessMetadata error: %v", err)
	}

	if raw.Title == "" || raw.SponsorCount != 15 || len(raw.Signatories) != 2 {
		t.Fatalf("detail fields missing: %+v", raw)
	}
	if len(raw.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(raw.Stages))
	}
	if raw.Stages[0].PrintNumber != "471" {
		t.Fatalf("stage print reference lost: %+v", raw.Stages[0])
	}
	if len(raw.Stages[1].Children) != 1 || raw.Stages[1].Children[0].Term != 10 {
		t.Fatalf("child link must inherit the parent term: %+v", raw.Stages[1].Children)
	}

	if len(raw.Prints) != 1 {
		t.Fatalf("duplicate print references must collapse to one fetch, got %d", len(raw.Prints))
	}
	pr := raw.Prints[0]
	if pr.DocumentDate != "2024-01-09" || len(pr.Attachments) != 2 {
		t.Fatalf("print detail missing: %+v", pr)
	}
	want := server.URL + "/term10/prints/471/471%20uzasadnienie.docx"
	if pr.AttachmentURLs[1] != want {
		t.Fatalf("attachment URL not escaped: %q (want %q)", pr.AttachmentURLs[1], want)
	}
}

func TestProcessMetadataToleratesFailedPrint(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/term10/processes/5", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"number": 5, "title": "t", "prints": [5]}`))
	})
	mux.HandleFunc("/term10/prints/5", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	raw, err := testClient(t, server).ProcessMetadata(context.Background(), domain.ProcessID{Term: 10, Number: "5"})
	if err != nil {
		t.Fatalf("a missing print must not fail the process: %v", err)
	}
	if len(raw.Prints) != 1 || raw.Prints[0].Number != "5" || len(raw.Prints[0].AttachmentURLs) != 0 {
		t.Fatalf("failed print must be recorded bare: %+v", raw.Prints)
	}
}

func TestProcessMetadataPropagatesDetailFailure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux() // no routes: every request 404s
	server := httptest.NewServer(mux)
	defer server.Close()

	_, err := testClient(t, server).ProcessMetadata(context.Background(), domain.ProcessID{Term: 10, Number: "404"})
	if err == nil {
		t.Fatal("missing process detail must surface an error")
	}
}
