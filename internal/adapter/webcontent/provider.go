// Package webcontent scrapes the institute's public pages into plain text
// and serves it as model context. Scraped text is cached in Redis with a TTL
// and mirrored in memory so a Redis outage degrades instead of failing.
package webcontent

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/html"

	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/pkg/textx"
)

const cacheKey = "webcontent:v1"

// maxPageRunes bounds the text kept per page.
const maxPageRunes = 20000

// Provider implements domain.WebContentProvider.
type Provider struct {
	pages []string
	hc    *http.Client
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger

	mu    sync.Mutex
	text  string
	since time.Time
}

// New builds a provider over the given page URLs. rdb may be nil; caching
// then happens in memory only.
func New(pages []string, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Provider{
		pages: pages,
		hc:    &http.Client{Timeout: 15 * time.Second},
		rdb:   rdb,
		ttl:   ttl,
		log:   log,
	}
}

// WebsiteContent implements domain.WebContentProvider.
func (p *Provider) WebsiteContent(ctx domain.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if text, ok := p.cached(ctx); ok {
			return text, nil
		}
	}

	text, err := p.scrape(ctx)
	if err != nil {
		// Serve stale memory content over nothing.
		p.mu.Lock()
		stale := p.text
		p.mu.Unlock()
		if stale != "" {
			p.log.WarnContext(ctx, "scrape failed, serving stale content", slog.Any("error", err))
			return stale, nil
		}
		return "", fmt.Errorf("op=webcontent.WebsiteContent: %w", err)
	}

	p.store(ctx, text)
	return text, nil
}

func (p *Provider) cached(ctx domain.Context) (string, bool) {
	if p.rdb != nil {
		text, err := p.rdb.Get(ctx, cacheKey).Result()
		if err == nil && text != "" {
			return text, true
		}
		if err != nil && err != redis.Nil {
			p.log.WarnContext(ctx, "redis read failed", slog.Any("error", err))
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.text != "" && time.Since(p.since) < p.ttl {
		return p.text, true
	}
	return "", false
}

func (p *Provider) store(ctx domain.Context, text string) {
	p.mu.Lock()
	p.text = text
	p.since = time.Now()
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	if err := p.rdb.Set(ctx, cacheKey, text, p.ttl).Err(); err != nil {
		p.log.WarnContext(ctx, "redis write failed", slog.Any("error", err))
	}
}

func (p *Provider) scrape(ctx domain.Context) (string, error) {
	if len(p.pages) == 0 {
		return "", fmt.Errorf("no pages configured")
	}
	var blocks []string
	var lastErr error
	for _, url := range p.pages {
		text, err := p.fetchPage(ctx, url)
		if err != nil {
			p.log.WarnContext(ctx, "page fetch failed", slog.String("url", url), slog.Any("error", err))
			lastErr = err
			continue
		}
		if text == "" {
			continue
		}
		blocks = append(blocks, "Fuente: "+url+"\n"+text)
	}
	if len(blocks) == 0 {
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("no content extracted")
	}
	return strings.Join(blocks, "\n\n"), nil
}

func (p *Provider) fetchPage(ctx domain.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "conectai/1.0")
	resp, err := p.hc.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	text := extractText(resp.Body)
	return textx.TruncateRunes(text, maxPageRunes), nil
}

// extractText flattens an HTML document to whitespace-normalized text,
// skipping script and style subtrees.
func extractText(r io.Reader) string {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style" || tag == "noscript") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}
}
