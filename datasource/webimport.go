package datasource

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/parchmint/corpora/core"
	"github.com/parchmint/corpora/pipeline"
)

const (
	defaultFetchAttempts = 3
	defaultFetchDelay    = time.Second
	maxPageBytes         = 16 << 20
)

var hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"'#]+)["']`)

// WebImport fetches remote pages into records. Each page becomes one
// record carrying the body, its resolved source URL, and the absolute
// links extracted from it.
type WebImport struct {
	urls     []string
	tags     []string
	attempts int
	delay    time.Duration
	client   *http.Client
	log      *slog.Logger
}

func NewWebImport(cfg pipeline.Config, env Env) (DataSource, error) {
	urls := cfg.Strings("urls")
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: webimport needs urls", ErrBadConfig)
	}
	attempts := cfg.Int("attempts", defaultFetchAttempts)
	if attempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	delay := defaultFetchDelay
	if ms := cfg.Int("delay", 0); ms > 0 {
		delay = time.Duration(ms) * time.Millisecond
	}
	log := env.Log
	if log == nil {
		log = slog.Default()
	}
	return &WebImport{
		urls:     urls,
		tags:     cfg.Strings("tags"),
		attempts: attempts,
		delay:    delay,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}, nil
}

func (w *WebImport) Fetch(ctx context.Context) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		for _, u := range w.urls {
			rec, err := w.fetchPage(ctx, u)
			if err != nil {
				w.log.Warn("page fetch failed", "url", u, "error", err)
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (w *WebImport) fetchPage(ctx context.Context, pageURL string) (*core.Record, error) {
	var body []byte
	err := retryWithBackoff(ctx, w.log.With("url", pageURL), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadConfig, pageURL, err)
		}
		resp, err := w.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("webimport: %s: status %d", pageURL, resp.StatusCode)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		return err
	}, w.attempts, w.delay)
	if err != nil {
		return nil, err
	}

	rec := core.NewRecord(0)
	rec.Set(core.FieldContent, string(body))
	rec.Set(core.FieldDate, time.Now())
	rec.Set("source.url", pageURL)
	if links := extractLinks(pageURL, body); len(links) > 0 {
		rec.Set("links", links)
	}
	if len(w.tags) > 0 {
		rec.SetTags(w.tags)
	}
	return rec, nil
}

// extractLinks pulls href targets out of a page and resolves them
// against the page URL. Relative and protocol-relative links become
// absolute; unparsable ones are dropped.
func extractLinks(pageURL string, body []byte) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	seen := map[string]bool{}
	var links []string
	for _, m := range hrefPattern.FindAllSubmatch(body, -1) {
		ref, err := url.Parse(string(m[1]))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			links = append(links, s)
		}
	}
	return links
}
