package scraper

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownloadPdfs(t *testing.T) {
	store := setupStore(t)

	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/Document/DisplayPdf", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("%PDF-1.4 fake"))
	})
	pdfServer := httptest.NewServer(mux)
	t.Cleanup(pdfServer.Close)

	// harvest first so the store holds pdf urls; detail pages link to
	// the pdf server
	harvest := recorderSite(t, func(w http.ResponseWriter, r *http.Request) {
		docNum := "DOC-" + r.URL.Query().Get("doc")
		io.WriteString(w, `<html><body>
		<fieldset><legend><span>Viewing Document</span></legend>
		<table><tr><th><label>Document Number:</label></th><td>`+docNum+`</td></tr></table>
		</fieldset>
		<a href="`+pdfServer.URL+`/Document/DisplayPdf?id=`+docNum+`">View PDF</a>
		</body></html>`)
	})

	s := newTestScraper(t, harvest.URL, store, store, "17-29-304-001-0000")
	sum := s.Run(context.Background())
	require.Len(t, sum.Completed, 1)

	dir := t.TempDir()
	err := DownloadPdfs(context.Background(), testFetchClient(), store, dir)
	require.NoError(t, err)
	require.EqualValues(t, 3, hits.Load())

	contents, err := os.ReadFile(filepath.Join(dir, "17293040010000", "DOC-A.pdf"))
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake", string(contents))

	// re-running skips files already on disk
	err = DownloadPdfs(context.Background(), testFetchClient(), store, dir)
	require.NoError(t, err)
	require.EqualValues(t, 3, hits.Load())
}
