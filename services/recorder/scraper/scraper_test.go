package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"recorder-scraper/lib/sqliteutil"
	"recorder-scraper/lib/telemetry"
	"recorder-scraper/services/recorder"
	"recorder-scraper/services/recorder/db"

	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) recorder.Store {
	cleanup := telemetry.SetupForTesting("test:recorder/scraper")
	t.Cleanup(cleanup)

	sqlite, err := sqliteutil.OpenDB(db.Schema, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return recorder.NewStore(sqlite)
}

func testDetailPage(docNum string) string {
	return fmt.Sprintf(`<html><body>
	<fieldset>
		<legend><span>Viewing Document</span></legend>
		<table>
			<tr><th><label>Document Number:</label></th><td>%s</td></tr>
			<tr><th><label>Date Recorded:</label></th><td>02/20/2020</td></tr>
			<tr><th><label>Document Type:</label></th><td>WARRANTY DEED</td></tr>
		</table>
	</fieldset>
	<span class="fs-5">Grantors</span>
	<table class="table"><tbody><tr><td>SMITH JOHN</td><td></td></tr></tbody></table>
	<span class="fs-5">Grantees</span>
	<table class="table"><tbody><tr><td>DOE JANE</td><td>8001</td></tr></tbody></table>
	<a href="/Document/DisplayPdf?id=%s">View PDF</a>
	</body></html>`, docNum, docNum)
}

// serves listings where ascending DateRecorded lists documents A and
// B, descending AlphaDocNumber lists B and C, and every other sort
// view is empty
func recorderSite(t *testing.T, detail func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/Search/SortResultByPin", func(w http.ResponseWriter, r *http.Request) {
		column := r.URL.Query().Get("column")
		direction := r.URL.Query().Get("direction")
		switch {
		case column == "DateRecorded" && direction == "asc":
			io.WriteString(w, listingPage("/Document/Detail?doc=A", "/Document/Detail?doc=B"))
		case column == "AlphaDocNumber" && direction == "desc":
			io.WriteString(w, listingPage("/Document/Detail?doc=B", "/Document/Detail?doc=C"))
		default:
			io.WriteString(w, listingPage())
		}
	})
	mux.HandleFunc("/Document/Detail", detail)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type countingSink struct {
	store   recorder.Store
	upserts int
	failOn  int
}

func (s *countingSink) Upsert(ctx context.Context, doc recorder.Document) error {
	s.upserts++
	if s.failOn != 0 && s.upserts == s.failOn {
		return fmt.Errorf("database is locked")
	}
	return s.store.Upsert(ctx, doc)
}

func countRows(t *testing.T, store recorder.Store, table string) int64 {
	summaries, err := store.PinSummaries(context.Background())
	require.NoError(t, err)
	var docs, entities int64
	for _, s := range summaries {
		docs += s.Documents
		entities += s.Entities
	}
	switch table {
	case "documents":
		return docs
	case "entities":
		return entities
	}
	t.Fatalf("unknown table %s", table)
	return 0
}

func TestRunEndToEnd(t *testing.T) {
	store := setupStore(t)
	server := recorderSite(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testDetailPage("DOC-"+r.URL.Query().Get("doc")))
	})

	s := newTestScraper(t, server.URL, store, store, "17-29-304-001-0000")

	sum := s.Run(context.Background())
	require.Equal(t, []string{"17293040010000"}, sum.Completed)
	require.Empty(t, sum.Failed)
	require.Empty(t, sum.Invalid)

	// {A,B} union {B,C} -> 3 documents, each with one grantor and
	// one grantee
	require.EqualValues(t, 3, countRows(t, store, "documents"))
	require.EqualValues(t, 6, countRows(t, store, "entities"))

	done, err := store.IsComplete(context.Background(), "17293040010000")
	require.NoError(t, err)
	require.True(t, done)

	// a second run skips the pin outright
	again := s.Run(context.Background())
	require.Empty(t, again.Completed)
	require.Equal(t, []string{"17293040010000"}, again.Skipped)
}

func TestRunSinkFailureLeavesPinIncomplete(t *testing.T) {
	store := setupStore(t)
	server := recorderSite(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testDetailPage("DOC-"+r.URL.Query().Get("doc")))
	})

	sink := &countingSink{store: store, failOn: 2}
	s := newTestScraper(t, server.URL, sink, store, "17-29-304-001-0000")

	sum := s.Run(context.Background())
	require.Equal(t, []string{"17293040010000"}, sum.Failed)
	require.Empty(t, sum.Completed)

	// the failure on the 2nd document did not stop the 3rd
	require.Equal(t, 3, sink.upserts)
	require.EqualValues(t, 2, countRows(t, store, "documents"))

	done, err := store.IsComplete(context.Background(), "17293040010000")
	require.NoError(t, err)
	require.False(t, done)
}

func TestRunDropsDocumentWithoutDocNum(t *testing.T) {
	store := setupStore(t)
	server := recorderSite(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("doc") == "B" {
			io.WriteString(w, `<html><body><p>record unavailable</p></body></html>`)
			return
		}
		io.WriteString(w, testDetailPage("DOC-"+r.URL.Query().Get("doc")))
	})

	s := newTestScraper(t, server.URL, store, store, "17-29-304-001-0000")

	sum := s.Run(context.Background())
	// the unextractable document is dropped, the pin still completes
	require.Equal(t, []string{"17293040010000"}, sum.Completed)
	require.EqualValues(t, 2, countRows(t, store, "documents"))
}

func TestRunSkipsInvalidPins(t *testing.T) {
	store := setupStore(t)
	server := recorderSite(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, testDetailPage("DOC-"+r.URL.Query().Get("doc")))
	})

	s := newTestScraper(t, server.URL, store, store, "not-a-pin", "17-29-304-001-0000")

	sum := s.Run(context.Background())
	require.Equal(t, []string{"not-a-pin"}, sum.Invalid)
	require.Equal(t, []string{"17293040010000"}, sum.Completed)
}

func TestRunAllListingsFailing(t *testing.T) {
	store := setupStore(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	s := newTestScraper(t, server.URL, store, store, "17-29-304-001-0000")

	sum := s.Run(context.Background())
	require.Equal(t, []string{"17293040010000"}, sum.Failed)

	done, err := store.IsComplete(context.Background(), "17293040010000")
	require.NoError(t, err)
	require.False(t, done)
}
