package scraper

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"recorder-scraper/lib/htmlutil"
	"recorder-scraper/lib/pinutil"
	"recorder-scraper/lib/urlutil"
	"recorder-scraper/services/recorder"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ErrNoDocNum marks a detail page with no identifiable document
// number. Such a document cannot be keyed and is dropped; every other
// missing field degrades to null instead.
var ErrNoDocNum = errors.New("document number not found")

// labels as they appear in the detail page's info table
const (
	labelDocNum        = "document number"
	labelDateExecuted  = "date executed"
	labelDateRecorded  = "date recorded"
	labelNumPages      = "# of pages"
	labelAddress       = "address"
	labelDocType       = "document type"
	labelConsideration = "consideration amount"
)

// ExtractDocument parses one document detail page into a structured
// record. Parsing is pure: the same html, pin and page url always
// yield the same record.
func ExtractDocument(ctx context.Context, body []byte, pin string, pageUrl *url.URL) (recorder.Document, error) {
	doc := recorder.Document{Pin: pin}

	page, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return doc, err
	}

	fields := infoFields(page)
	docNum := fields[labelDocNum]
	if docNum == "" {
		return doc, ErrNoDocNum
	}
	doc.DocNum = docNum
	doc.DocType = fields[labelDocType]
	doc.DateExecuted = parseDate(ctx, fields, labelDateExecuted, docNum)
	doc.DateRecorded = parseDate(ctx, fields, labelDateRecorded, docNum)
	doc.NumPages = parsePages(ctx, fields, docNum)
	doc.Address = optional(fields[labelAddress])
	doc.ConsiderationAmount = optional(fields[labelConsideration])

	doc.Entities = append(
		extractEntities(ctx, page, "Grantors", recorder.EntityGrantor),
		extractEntities(ctx, page, "Grantees", recorder.EntityGrantee)...,
	)
	doc.RelatedPins = extractRelatedPins(page)
	doc.PriorDocs = extractPriorDocs(page)
	doc.PdfUrl = extractPdfUrl(page, pageUrl)

	return doc, nil
}

// infoFields reads the label/value table under the "Viewing Document"
// legend into a map keyed by lowercased label.
func infoFields(page *goquery.Document) map[string]string {
	fields := map[string]string{}

	heading := findByText(page, "Viewing Document")
	if heading == nil {
		return fields
	}
	table := htmlutil.Following(heading, "table")
	if table == nil {
		return fields
	}

	goquery.NewDocumentFromNode(table).Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := htmlutil.CleanText(row.Find("th label").Text())
		if label == "" {
			label = htmlutil.CleanText(row.Find("th").Text())
		}
		label = strings.ToLower(strings.TrimSuffix(label, ":"))
		if label == "" {
			return
		}
		fields[label] = htmlutil.CleanText(row.Find("td").First().Text())
	})
	return fields
}

// extractEntities reads one grantor/grantee section: a span.fs-5
// heading followed by a table of (name, trust number) rows.
func extractEntities(ctx context.Context, page *goquery.Document, section string, status recorder.EntityStatus) []recorder.Entity {
	var heading *html.Node
	page.Find("span.fs-5").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(htmlutil.CleanText(s.Text()), section) {
			heading = s.Get(0)
			return false
		}
		return true
	})
	if heading == nil {
		return nil
	}
	table := htmlutil.Following(heading, "table")
	if table == nil {
		return nil
	}

	var entities []recorder.Entity
	goquery.NewDocumentFromNode(table).Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			slog.DebugContext(ctx, "skipping short entity row", "section", section, "cells", cells.Length())
			return
		}

		nameCell := cells.Eq(0)
		name := htmlutil.CleanText(nameCell.Find("a").First().Text())
		if name == "" {
			name = htmlutil.CleanText(nameCell.Text())
		}
		if name == "" {
			return
		}

		entities = append(entities, recorder.Entity{
			Name:        name,
			Status:      status,
			TrustNumber: optional(htmlutil.CleanText(cells.Eq(1).Text())),
		})
	})
	return entities
}

// extractRelatedPins reads the legal description table. The cells are
// free text, tokens that don't normalize to a valid PIN are dropped
// silently.
func extractRelatedPins(page *goquery.Document) []string {
	heading := findByText(page, "Legal Description")
	if heading == nil {
		return nil
	}
	table := htmlutil.Following(heading, "table")
	if table == nil {
		return nil
	}

	seen := map[string]bool{}
	var pins []string
	goquery.NewDocumentFromNode(table).Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		token := htmlutil.CleanText(row.Find("td").First().Text())
		pin, err := pinutil.Normalize(token)
		if err != nil {
			return
		}
		if seen[pin] {
			return
		}
		seen[pin] = true
		pins = append(pins, pin)
	})
	return pins
}

func extractPriorDocs(page *goquery.Document) []string {
	heading := findByText(page, "Prior Documents")
	if heading == nil {
		return nil
	}
	table := htmlutil.Following(heading, "table")
	if table == nil {
		return nil
	}

	seen := map[string]bool{}
	var docNums []string
	goquery.NewDocumentFromNode(table).Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		docNum := htmlutil.CleanText(cells.Eq(1).Text())
		if docNum == "" || seen[docNum] {
			return
		}
		seen[docNum] = true
		docNums = append(docNums, docNum)
	})
	return docNums
}

func extractPdfUrl(page *goquery.Document, pageUrl *url.URL) *string {
	href, ok := page.Find(`a[href*="/Document/DisplayPdf"]`).First().Attr("href")
	if !ok {
		return nil
	}
	abs, err := urlutil.ResolveRef(pageUrl, href)
	if err != nil {
		return nil
	}
	return &abs
}

// findByText locates the heading element whose own text contains the
// given section title.
func findByText(page *goquery.Document, text string) *html.Node {
	var found *html.Node
	page.Find("span, legend, label, th, b, h1, h2, h3, h4, h5").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(htmlutil.CleanText(htmlutil.OwnText(s.Get(0))), text) {
			found = s.Get(0)
			return false
		}
		return true
	})
	return found
}

// the site renders dates as MM/DD/YYYY
const siteDateLayout = "01/02/2006"

func parseDate(ctx context.Context, fields map[string]string, label, docNum string) *string {
	raw := fields[label]
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(siteDateLayout, raw)
	if err != nil {
		slog.WarnContext(ctx, "unparseable date, storing null", "doc_num", docNum, "field", label, "value", raw)
		return nil
	}
	iso := parsed.Format("2006-01-02")
	return &iso
}

func parsePages(ctx context.Context, fields map[string]string, docNum string) *int64 {
	raw := fields[labelNumPages]
	if raw == "" {
		return nil
	}
	pages, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || pages < 0 {
		slog.WarnContext(ctx, "unparseable page count, storing null", "doc_num", docNum, "value", raw)
		return nil
	}
	return &pages
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
