// Package news collects recent headlines from GNews and NewsAPI for analysis
// prompts.
package news

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/investscope/pkg/logger"
)

const (
	// MaxArticles caps the merged result.
	MaxArticles = 8
	// PerSource is requested from each source.
	PerSource = 5
	// DefaultLang is used when none is given.
	DefaultLang = "fr"

	dedupePrefix = 50
)

// Article is one normalized headline.
type Article struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Image       string    `json:"image,omitempty"`
}

// Source searches one news API.
type Source interface {
	Name() string
	Search(ctx context.Context, query, lang string, max int) ([]Article, error)
}

// Aggregator queries every source concurrently and merges the results.
type Aggregator struct {
	sources []Source
	logger  *logger.Logger
}

func NewAggregator(log *logger.Logger, sources ...Source) *Aggregator {
	return &Aggregator{sources: sources, logger: log.Module("news")}
}

// Search returns at most MaxArticles, deduplicated by title and newest first.
// A failing source is logged and ignored.
func (a *Aggregator) Search(ctx context.Context, query, lang string) ([]Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if lang == "" {
		lang = DefaultLang
	}

	batches := make([][]Article, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			articles, err := src.Search(gctx, query, lang, PerSource)
			if err != nil {
				a.logger.WithField("source", src.Name()).WithError(err).Warn("news source failed")
				return nil
			}
			batches[i] = articles
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []Article
	for _, b := range batches {
		all = append(all, b...)
	}
	return Merge(all), nil
}

// Merge drops articles without a title, deduplicates on the first 50
// characters of the lower-cased title (first occurrence wins), sorts by
// publication time descending and keeps MaxArticles.
func Merge(articles []Article) []Article {
	seen := make(map[string]bool, len(articles))
	out := make([]Article, 0, len(articles))
	for _, art := range articles {
		key := dedupeKey(art.Title)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		art.Description = StripHTML(art.Description)
		out = append(out, art)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if len(out) > MaxArticles {
		out = out[:MaxArticles]
	}
	return out
}

func dedupeKey(title string) string {
	r := []rune(strings.ToLower(strings.TrimSpace(title)))
	if len(r) > dedupePrefix {
		r = r[:dedupePrefix]
	}
	return string(r)
}

// StripHTML returns the text content of an HTML fragment.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// PromptBlock renders headlines as one line each.
func PromptBlock(articles []Article) string {
	var b strings.Builder
	for _, art := range articles {
		date := ""
		if !art.PublishedAt.IsZero() {
			date = art.PublishedAt.Format("2006-01-02") + " "
		}
		fmt.Fprintf(&b, "- %s%s", date, art.Title)
		if art.Source != "" {
			fmt.Fprintf(&b, " (%s)", art.Source)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
