package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"recorder-scraper/lib/htmlutil"
	"recorder-scraper/lib/urlutil"

	"github.com/PuerkitoBio/goquery"
)

// the search view's sortable columns, as the site names them
var sortColumns = []string{
	"DateRecorded",
	"AlphaDocNumber",
	"DateExecuted",
	"DocTypeDescription",
}

var sortDirections = []string{"asc", "desc"}

func (s *Scraper) listingUrl(pin, column, direction string) string {
	link := *s.base
	link.Path = "/Search/SortResultByPin"

	query := url.Values{}
	query.Set("id1", pin)
	query.Set("column", column)
	query.Set("direction", direction)
	link.RawQuery = query.Encode()

	return link.String()
}

// enumerate unions the document urls found under every sort column x
// direction. No single sort view is guaranteed to list every document
// for the PIN, the 8-way union is a best-effort maximization, not a
// proven-complete enumeration. Partial listing failures still yield
// the union of the views that did load; the PIN only fails when every
// listing query fails.
func (s *Scraper) enumerate(ctx context.Context, pin string) ([]string, error) {
	seen := map[string]bool{}
	var detailUrls []string
	failures := 0
	total := 0

	for _, column := range sortColumns {
		for _, direction := range sortDirections {
			total++
			listing := s.listingUrl(pin, column, direction)
			slog.DebugContext(ctx, "querying listing", "pin", pin, "url", listing)

			body, _, err := s.client.Get(ctx, listing)
			if err != nil {
				slog.WarnContext(ctx, "listing query failed", "pin", pin, "url", listing, "err", err)
				failures++
				continue
			}

			found, err := parseListing(body, s.base)
			if err != nil {
				slog.WarnContext(ctx, "failed to parse listing", "pin", pin, "url", listing, "err", err)
				failures++
				continue
			}

			for _, detailUrl := range found {
				canonical, err := urlutil.Canonicalize(detailUrl)
				if err != nil {
					slog.WarnContext(ctx, "dropping malformed document url", "pin", pin, "url", detailUrl, "err", err)
					continue
				}
				if seen[canonical] {
					continue
				}
				seen[canonical] = true
				detailUrls = append(detailUrls, canonical)
			}
		}
	}

	if failures == total {
		return nil, fmt.Errorf("all %d listing queries failed for pin %s", total, pin)
	}
	return detailUrls, nil
}

// parseListing pulls the href of every "View" anchor out of a search
// result page and resolves it against the site root.
func parseListing(body []byte, base *url.URL) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var links []string
	doc.Find("a").Each(func(_ int, anchor *goquery.Selection) {
		if htmlutil.CleanText(anchor.Text()) != "View" {
			return
		}
		href, ok := anchor.Attr("href")
		if !ok || href == "" {
			return
		}
		abs, err := urlutil.ResolveRef(base, href)
		if err != nil {
			return
		}
		links = append(links, abs)
	})
	return links, nil
}
