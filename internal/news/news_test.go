package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/pkg/httputil"
	"github.com/wonny/investscope/pkg/logger"
)

func at(day int) time.Time {
	return time.Date(2026, 2, day, 9, 0, 0, 0, time.UTC)
}

func TestMerge(t *testing.T) {
	long := strings.Repeat("a", 50)
	articles := []Article{
		{Title: "BCE maintient ses taux", PublishedAt: at(1)},
		{Title: "bce MAINTIENT ses taux", PublishedAt: at(5)},
		{Title: long + " first", PublishedAt: at(2)},
		{Title: long + " second", PublishedAt: at(3)},
		{Title: "", PublishedAt: at(9)},
		{Title: "CAC 40 en hausse", Description: "<p>Le <b>CAC</b> gagne</p>", PublishedAt: at(4)},
	}

	got := Merge(articles)
	require.Len(t, got, 3)
	assert.Equal(t, "CAC 40 en hausse", got[0].Title)
	assert.Equal(t, "Le CAC gagne", got[0].Description)
	assert.Equal(t, long+" first", got[1].Title)
	assert.Equal(t, "BCE maintient ses taux", got[2].Title)
}

func TestMergeCaps(t *testing.T) {
	var articles []Article
	for i := 1; i <= 12; i++ {
		articles = append(articles, Article{Title: fmt.Sprintf("titre %d", i), PublishedAt: at(i)})
	}
	got := Merge(articles)
	require.Len(t, got, MaxArticles)
	assert.Equal(t, "titre 12", got[0].Title)
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"<p>Hello <a href='x'>world</a></p>", "Hello world"},
		{"Caf&eacute; &amp; co", "Café & co"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.in))
		})
	}
}

type stubSource struct {
	name     string
	articles []Article
	err      error
}

func (s stubSource) Name() string { return s.name }

func (s stubSource) Search(context.Context, string, string, int) ([]Article, error) {
	return s.articles, s.err
}

func TestAggregatorIgnoresFailingSource(t *testing.T) {
	a := NewAggregator(logger.Nop(),
		stubSource{name: "gnews", err: errors.New("quota")},
		stubSource{name: "newsapi", articles: []Article{{Title: "Inflation", PublishedAt: at(1)}}},
	)
	got, err := a.Search(context.Background(), "France économie", "")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Inflation", got[0].Title)

	got, err = a.Search(context.Background(), "  ", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSourcesDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gnews/search":
			assert.Equal(t, "fr", r.URL.Query().Get("lang"))
			_, _ = w.Write([]byte(`{"articles":[{"title":"G","url":"u","image":"i.png","publishedAt":"2026-02-01T10:00:00Z","source":{"name":"Le Monde"}}]}`))
		case "/newsapi/everything":
			assert.Equal(t, "publishedAt", r.URL.Query().Get("sortBy"))
			_, _ = w.Write([]byte(`{"articles":[{"title":"N","url":"u","urlToImage":"n.png","publishedAt":"2026-02-02T10:00:00Z","source":{"name":"Les Echos"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := httputil.New(logger.Nop()).DisableRetry()

	g, err := NewGNews(client, srv.URL+"/gnews", "k").Search(context.Background(), "x", "fr", 5)
	require.NoError(t, err)
	require.Len(t, g, 1)
	assert.Equal(t, "Le Monde", g[0].Source)
	assert.Equal(t, "i.png", g[0].Image)
	assert.Equal(t, 2026, g[0].PublishedAt.Year())

	n, err := NewNewsAPI(client, srv.URL+"/newsapi", "k").Search(context.Background(), "x", "fr", 5)
	require.NoError(t, err)
	require.Len(t, n, 1)
	assert.Equal(t, "n.png", n[0].Image)

	_, err = NewGNews(client, srv.URL, "").Search(context.Background(), "x", "fr", 5)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestPromptBlock(t *testing.T) {
	out := PromptBlock([]Article{{Title: "Hausse", Source: "AFP", PublishedAt: at(3)}})
	assert.Equal(t, "- 2026-02-03 Hausse (AFP)\n", out)
}
