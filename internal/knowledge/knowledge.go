// Package knowledge holds the institute's static knowledge base: the topic
// classifier, the FAQ table with keyword and fuzzy lookup, and the verified
// facts injected into model prompts.
package knowledge

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/exdly/conectai/pkg/textx"
)

//go:embed kb.yaml
var rawKB []byte

// fuzzyThreshold is the minimum similarity ratio for a FAQ fuzzy match.
// Scores at or below it are rejected.
const fuzzyThreshold = 0.75

// substringBonus rewards a full containment between query and FAQ key.
const substringBonus = 0.3

// durationWords mark queries about program length. A query carrying one of
// these must not resolve to a faculty roster even when it names a program.
var durationWords = []string{"duracion", "tiempo", "anos", "semestres", "malla"}

type topicRule struct {
	Tag      string   `yaml:"tag"`
	Triggers []string `yaml:"triggers"`
}

type faqEntry struct {
	Key    string `yaml:"key"`
	Answer string `yaml:"answer"`
}

type keywordRule struct {
	Keyword string `yaml:"keyword"`
	FAQKey  string `yaml:"faq_key"`
}

type roster struct {
	Program string `yaml:"program"`
	Text    string `yaml:"text"`
}

type kbFile struct {
	Topics     []topicRule       `yaml:"topics"`
	FAQ        []faqEntry        `yaml:"faq"`
	KeywordMap []keywordRule     `yaml:"keyword_map"`
	Verified   map[string]string `yaml:"verified"`
	Rosters    []roster          `yaml:"rosters"`
	Canned     map[string]string `yaml:"canned"`
}

// Base is the loaded knowledge base. It is immutable after Load and safe for
// concurrent use.
type Base struct {
	topics     []topicRule
	faq        []faqEntry
	faqByKey   map[string]string
	keywordMap []keywordRule
	verified   map[string]string
	rosters    []roster
	canned     map[string]string
}

// Load parses the embedded knowledge base.
func Load() (*Base, error) {
	var f kbFile
	if err := yaml.Unmarshal(rawKB, &f); err != nil {
		return nil, fmt.Errorf("op=knowledge.Load: %w", err)
	}
	b := &Base{
		topics:     f.Topics,
		faq:        f.FAQ,
		faqByKey:   make(map[string]string, len(f.FAQ)),
		keywordMap: f.KeywordMap,
		verified:   f.Verified,
		rosters:    f.Rosters,
		canned:     f.Canned,
	}
	for _, e := range f.FAQ {
		b.faqByKey[e.Key] = e.Answer
	}
	return b, nil
}

// Classify maps a raw query to a topic tag. Topics are checked in declaration
// order and the first trigger contained in the normalized query wins; queries
// matching nothing classify as "general".
func (b *Base) Classify(query string) string {
	q := textx.Normalize(query)
	for _, t := range b.topics {
		for _, trig := range t.Triggers {
			if strings.Contains(q, trig) {
				return t.Tag
			}
		}
	}
	return "general"
}

// Canned returns the fixed reply for conversational topics such as greetings.
func (b *Base) Canned(topic string) (string, bool) {
	a, ok := b.canned[topic]
	return a, ok
}

// KeywordMatch resolves a query against the keyword map, in declaration
// order. Queries about program duration never resolve to faculty rosters:
// "cuanto dura farmacia" asks about the career, not its teachers.
func (b *Base) KeywordMatch(query string) (string, bool) {
	q := textx.Normalize(query)
	asksDuration := textx.ContainsAny(q, durationWords)
	for _, r := range b.keywordMap {
		if !strings.Contains(q, r.Keyword) {
			continue
		}
		if asksDuration && strings.HasPrefix(r.FAQKey, "docentes") {
			continue
		}
		if a, ok := b.faqByKey[r.FAQKey]; ok {
			return a, true
		}
	}
	return "", false
}

// FuzzyMatch compares the query against every FAQ key with a character-level
// similarity ratio, plus a bonus when the key appears inside the query. The
// best score must exceed the threshold.
func (b *Base) FuzzyMatch(query string) (string, bool) {
	q := textx.Normalize(query)
	if q == "" {
		return "", false
	}
	var bestKey string
	bestScore := 0.0
	for _, e := range b.faq {
		score := similarity(q, e.Key)
		if strings.Contains(q, e.Key) {
			score += substringBonus
		}
		if score > bestScore {
			bestScore, bestKey = score, e.Key
		}
	}
	if bestScore <= fuzzyThreshold {
		return "", false
	}
	return b.faqByKey[bestKey], true
}

// Answer returns the FAQ answer stored under the given key.
func (b *Base) Answer(key string) (string, bool) {
	a, ok := b.faqByKey[key]
	return a, ok
}

// Topics returns the known topic tags in declaration order.
func (b *Base) Topics() []string {
	tags := make([]string, 0, len(b.topics))
	for _, t := range b.topics {
		tags = append(tags, t.Tag)
	}
	return tags
}

// rosterQueryWords gate roster injection: faculty lists are evidence only
// when the query is actually about who teaches.
var rosterQueryWords = []string{"docente", "profesor", "ensena"}

// VerifiedContext returns the official fact block for a topic, plus the
// faculty rosters of any program named by a staffing query. Returns "" when
// nothing applies.
func (b *Base) VerifiedContext(topic, query string) string {
	var blocks []string
	if block, ok := b.verified[topic]; ok {
		blocks = append(blocks, block)
	}
	q := textx.Normalize(query)
	if topic == "carreras" || textx.ContainsAny(q, rosterQueryWords) {
		for _, r := range b.rosters {
			if strings.Contains(q, r.Program) || (r.Program == "empleabilidad" && strings.Contains(q, "transversal")) {
				blocks = append(blocks, r.Text)
			}
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n")
}

// similarity is a character-level sequence match ratio in [0,1].
func similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// sortedVerifiedKeys is used by tests to assert the fact table is complete.
func (b *Base) sortedVerifiedKeys() []string {
	keys := make([]string, 0, len(b.verified))
	for k := range b.verified {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
