package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"recorder-scraper/lib/fetch"
	"recorder-scraper/services/recorder"
)

// DownloadPdfs fetches the pdf for every persisted document that has
// a pdf url, writing <dir>/<pin>/<doc_num>.pdf. Files already on disk
// are skipped, so the command is safe to re-run. The harvest itself
// only records pdf urls; this is the peripheral consumer of them.
func DownloadPdfs(ctx context.Context, client *fetch.Client, store recorder.Store, dir string) error {
	targets, err := store.PdfTargets(ctx)
	if err != nil {
		return err
	}

	var failures []error
	for _, target := range targets {
		path := filepath.Join(dir, target.Pin, target.DocNum+".pdf")
		if _, err := os.Stat(path); err == nil {
			slog.DebugContext(ctx, "pdf already downloaded, skipping", "path", path)
			continue
		}

		err = os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return err
		}

		slog.InfoContext(ctx, "downloading pdf", "doc_num", target.DocNum, "url", target.PdfUrl)
		body, _, err := client.Get(ctx, target.PdfUrl)
		if err != nil {
			slog.WarnContext(ctx, "failed to download pdf", "doc_num", target.DocNum, "url", target.PdfUrl, "err", err)
			failures = append(failures, err)
			continue
		}

		err = os.WriteFile(path, body, 0644)
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	return errors.Join(failures...)
}
