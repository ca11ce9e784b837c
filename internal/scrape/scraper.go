// Package scrape fetches the translation-status page and extracts
// per-volume status observations from it.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

// Config controls the page fetcher.
type Config struct {
	// URL is the announcements page to watch.
	URL string
	// Titles lists the series names to extract rows for.
	Titles []string
	// UserAgent is sent with every request.
	UserAgent string
	// Timeout bounds one page fetch.
	Timeout time.Duration
}

// Scraper implements tracker.Source using a Colly collector.
type Scraper struct {
	cfg       Config
	collector *colly.Collector
	clock     tracker.Clock
	logger    *zap.Logger
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New builds a Scraper.
func New(cfg Config, clock tracker.Clock, logger *zap.Logger) *Scraper {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "kotori-notify/1.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.SetRequestTimeout(cfg.Timeout)

	return &Scraper{cfg: cfg, collector: c, clock: clock, logger: logger}
}

// Fetch retrieves the page once and parses the status table. Any failure
// here is fatal to the run: without observations there is nothing to process.
func (s *Scraper) Fetch(ctx context.Context) (tracker.Page, error) {
	if err := ctx.Err(); err != nil {
		return tracker.Page{}, err
	}

	var (
		raw      []byte
		fetchErr error
	)
	collector := s.collector.Clone()
	collector.OnResponse(func(resp *colly.Response) {
		raw = append([]byte(nil), resp.Body...)
	})
	collector.OnError(func(resp *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(s.cfg.URL); err != nil {
		return tracker.Page{}, fmt.Errorf("fetch %s: %w", s.cfg.URL, err)
	}
	collector.Wait()
	if fetchErr != nil {
		return tracker.Page{}, fmt.Errorf("fetch %s: %w", s.cfg.URL, fetchErr)
	}
	if len(raw) == 0 {
		return tracker.Page{}, fmt.Errorf("fetch %s: empty response", s.cfg.URL)
	}

	observations, err := ParseStatusTable(bytes.NewReader(raw), s.cfg.Titles)
	if err != nil {
		return tracker.Page{}, fmt.Errorf("parse %s: %w", s.cfg.URL, err)
	}
	s.logger.Debug("page scraped",
		zap.String("url", s.cfg.URL),
		zap.Int("bytes", len(raw)),
		zap.Int("observations", len(observations)),
	)
	return tracker.Page{
		Observations: observations,
		Raw:          raw,
		FetchedAt:    s.clock.Now(),
	}, nil
}

// ParseStatusTable extracts observations for the requested titles from the
// page body. Rows live in table cells under div.post-content and look like
// "Overlord #15 – zapowiedź"; the volume is the part after the final '#'
// and the status is everything after the dash.
func ParseStatusTable(r io.Reader, titles []string) ([]tracker.Observation, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var out []tracker.Observation
	doc.Find("div.post-content td").Each(func(_ int, cell *goquery.Selection) {
		text := strings.TrimSpace(cell.Text())
		if text == "" {
			return
		}
		for _, title := range titles {
			if !strings.Contains(text, title) {
				continue
			}
			obs, ok := parseRow(title, text)
			if !ok {
				continue
			}
			out = append(out, obs)
		}
	})
	return out, nil
}

// Dashes seen separating item from status on the page.
var statusSeparators = []string{"–", "—", " - "}

func parseRow(title, text string) (tracker.Observation, bool) {
	var item, status string
	for _, sep := range statusSeparators {
		if idx := strings.Index(text, sep); idx >= 0 {
			item = strings.TrimSpace(text[:idx])
			status = strings.TrimSpace(text[idx+len(sep):])
			break
		}
	}
	if item == "" || status == "" {
		return tracker.Observation{}, false
	}

	volume := item
	if idx := strings.LastIndex(item, "#"); idx >= 0 {
		volume = item[idx+1:]
	}
	volume = strings.TrimSpace(volume)
	if volume == "" {
		return tracker.Observation{}, false
	}

	return tracker.Observation{
		Title:  title,
		Volume: volume,
		Status: status,
	}, true
}
