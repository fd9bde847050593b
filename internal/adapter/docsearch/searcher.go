// Package docsearch answers queries from a directory of extracted document
// text, one .txt file per institutional document.
package docsearch

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/exdly/conectai/internal/domain"
	"github.com/exdly/conectai/pkg/textx"
)

// filenameWeight makes a keyword hit in the document name count more than one
// in its body: "requisitos_admision.txt" is a strong signal.
const filenameWeight = 3

// maxResultRunes bounds what a single search hands back to the router.
const maxResultRunes = 8000

type document struct {
	name string
	text string
}

// Searcher implements domain.DocumentSearcher over a local directory.
// Documents are loaded once and kept in memory; Reload picks up new files.
type Searcher struct {
	dir string
	log *slog.Logger

	mu   sync.RWMutex
	docs []document
}

// New builds a searcher over dir. A missing directory is not an error: the
// searcher just starts empty.
func New(dir string, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	s := &Searcher{dir: dir, log: log}
	if err := s.Reload(); err != nil {
		log.Warn("document directory not loaded", slog.String("dir", dir), slog.Any("error", err))
	}
	return s
}

// Reload re-reads every .txt file under the directory.
func (s *Searcher) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("op=docsearch.Reload: %w", err)
	}
	var docs []document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			s.log.Warn("document unreadable", slog.String("file", e.Name()), slog.Any("error", err))
			continue
		}
		docs = append(docs, document{
			name: textx.Normalize(strings.TrimSuffix(e.Name(), ".txt")),
			text: textx.SanitizeText(string(raw)),
		})
	}
	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	s.log.Info("documents loaded", slog.String("dir", s.dir), slog.Int("count", len(docs)))
	return nil
}

// SearchDocuments implements domain.DocumentSearcher. It returns the text of
// the best scoring document, or "" when no document shares a keyword with
// the query.
func (s *Searcher) SearchDocuments(_ domain.Context, query string) (string, error) {
	keywords := textx.Keywords(query)
	if len(keywords) == 0 {
		return "", nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	bestScore := 0
	for i, d := range s.docs {
		score := 0
		lower := strings.ToLower(d.text)
		for _, kw := range keywords {
			if strings.Contains(d.name, kw) {
				score += filenameWeight
			}
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			bestScore, best = score, i
		}
	}
	if best < 0 {
		return "", nil
	}
	return textx.TruncateRunes(s.docs[best].text, maxResultRunes), nil
}

// Len reports how many documents are loaded.
func (s *Searcher) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
