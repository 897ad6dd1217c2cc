// Package scraper walks a county recorder's PIN search, extracts
// document metadata from the detail pages and hands structured
// records to a sink.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"recorder-scraper/lib/fetch"
	"recorder-scraper/lib/pinutil"
	"recorder-scraper/services/recorder"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/recorder/scraper")

// Sink receives one fully-extracted document and persists it.
// Upsert must be idempotent: re-observing the same doc_num from any
// PIN or run converges to one canonical row set.
type Sink interface {
	Upsert(ctx context.Context, doc recorder.Document) error
}

// Progress is the completed-PIN checkpoint. MarkComplete is called
// only after every document of the PIN has been extracted and
// persisted without a fatal error.
type Progress interface {
	IsComplete(ctx context.Context, pin string) (bool, error)
	MarkComplete(ctx context.Context, pin string) error
}

type Options struct {
	// root of the recorder site, e.g. https://crs.cookcountyclerkil.gov
	BaseUrl string
	// raw PIN strings, any formatting
	Pins []string
	// pause between PINs; a little jitter is added on top
	Delay time.Duration
}

type Scraper struct {
	client   *fetch.Client
	sink     Sink
	progress Progress
	base     *url.URL
	pins     []string
	delay    time.Duration
}

func New(client *fetch.Client, sink Sink, progress Progress, opts Options) (*Scraper, error) {
	base, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", opts.BaseUrl)
	}
	return &Scraper{
		client:   client,
		sink:     sink,
		progress: progress,
		base:     base,
		pins:     opts.Pins,
		delay:    opts.Delay,
	}, nil
}

// Summary reports what happened to each input PIN over one run.
type Summary struct {
	Completed []string
	Skipped   []string
	Invalid   []string
	Failed    []string
}

// Run processes every configured PIN in order. Failures are contained
// at PIN granularity: one PIN failing never aborts the rest.
func (s *Scraper) Run(ctx context.Context) Summary {
	var sum Summary

	for i, raw := range s.pins {
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "run cancelled", "remaining", len(s.pins)-i)
			break
		}
		if i > 0 {
			s.pause(ctx)
		}

		pin, err := pinutil.Normalize(raw)
		if err != nil {
			slog.WarnContext(ctx, "skipping invalid pin", "pin", raw, "err", err)
			sum.Invalid = append(sum.Invalid, raw)
			continue
		}

		done, err := s.progress.IsComplete(ctx, pin)
		if err != nil {
			slog.ErrorContext(ctx, "failed to check pin progress", "pin", pin, "err", err)
			sum.Failed = append(sum.Failed, pin)
			continue
		}
		if done {
			slog.InfoContext(ctx, "pin already scraped, skipping", "pin", pinutil.Format(pin))
			sum.Skipped = append(sum.Skipped, pin)
			continue
		}

		start := time.Now()
		err = s.scrapePin(ctx, pin)
		if err != nil {
			slog.ErrorContext(ctx, "pin failed, will retry on next run", "pin", pinutil.Format(pin), "err", err)
			sum.Failed = append(sum.Failed, pin)
			continue
		}

		err = s.progress.MarkComplete(ctx, pin)
		if err != nil {
			slog.ErrorContext(ctx, "failed to checkpoint pin", "pin", pin, "err", err)
			sum.Failed = append(sum.Failed, pin)
			continue
		}

		slog.InfoContext(ctx, "finished pin",
			"pin", pinutil.Format(pin),
			"seconds", time.Since(start).Seconds())
		sum.Completed = append(sum.Completed, pin)
	}

	return sum
}

func (s *Scraper) scrapePin(ctx context.Context, pin string) error {
	ctx, span := tracer.Start(ctx, "scrapePin")
	defer span.End()
	span.SetAttributes(attribute.String("pin", pin))

	detailUrls, err := s.enumerate(ctx, pin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enumeration failed")
		return err
	}
	slog.InfoContext(ctx, "enumerated document pages", "pin", pinutil.Format(pin), "count", len(detailUrls))

	sinkFailures := 0
	for _, detailUrl := range detailUrls {
		body, _, err := s.client.Get(ctx, detailUrl)
		if err != nil {
			// abandoned after retries, the document stays
			// reachable on the next full-PIN retry
			slog.WarnContext(ctx, "failed to fetch document page", "pin", pin, "url", detailUrl, "err", err)
			continue
		}

		pageUrl, err := url.Parse(detailUrl)
		if err != nil {
			slog.WarnContext(ctx, "unparseable document url", "pin", pin, "url", detailUrl, "err", err)
			continue
		}

		doc, err := ExtractDocument(ctx, body, pin, pageUrl)
		if errors.Is(err, ErrNoDocNum) {
			slog.WarnContext(ctx, "dropping document without a document number", "pin", pin, "url", detailUrl)
			continue
		}
		if err != nil {
			slog.WarnContext(ctx, "failed to extract document", "pin", pin, "url", detailUrl, "err", err)
			continue
		}

		err = s.sink.Upsert(ctx, doc)
		if err != nil {
			slog.ErrorContext(ctx, "failed to persist document", "pin", pin, "doc_num", doc.DocNum, "err", err)
			sinkFailures++
		}
	}

	if sinkFailures > 0 {
		return fmt.Errorf("%d of %d documents failed to persist", sinkFailures, len(detailUrls))
	}
	return nil
}

func (s *Scraper) pause(ctx context.Context) {
	if s.delay <= 0 {
		return
	}
	jitterMs, err := random.IntRange(0, 1000)
	if err != nil {
		jitterMs = 0
	}
	select {
	case <-time.After(s.delay + time.Duration(jitterMs)*time.Millisecond):
	case <-ctx.Done():
	}
}
