package news

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/investscope/pkg/httputil"
)

// ErrMissingKey is returned by sources without an API key.
var ErrMissingKey = errors.New("missing API key")

type wireArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Image       string `json:"image"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
	} `json:"source"`
}

func (w wireArticle) article() Article {
	published, _ := time.Parse(time.RFC3339, w.PublishedAt)
	image := w.Image
	if image == "" {
		image = w.URLToImage
	}
	return Article{
		Title:       w.Title,
		Description: w.Description,
		URL:         w.URL,
		Source:      w.Source.Name,
		PublishedAt: published,
		Image:       image,
	}
}

type wireResponse struct {
	Articles []wireArticle `json:"articles"`
}

func (r wireResponse) articles() []Article {
	out := make([]Article, 0, len(r.Articles))
	for _, a := range r.Articles {
		out = append(out, a.article())
	}
	return out
}

// GNews searches gnews.io.
type GNews struct {
	httpClient *httputil.Client
	baseURL    string
	apiKey     string
}

func NewGNews(httpClient *httputil.Client, baseURL, apiKey string) *GNews {
	return &GNews{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (g *GNews) Name() string { return "gnews" }

func (g *GNews) Search(ctx context.Context, query, lang string, max int) ([]Article, error) {
	if g.apiKey == "" {
		return nil, ErrMissingKey
	}
	q := url.Values{
		"q":      {query},
		"lang":   {lang},
		"max":    {strconv.Itoa(max)},
		"apikey": {g.apiKey},
	}
	var resp wireResponse
	if err := g.httpClient.GetJSON(ctx, g.baseURL+"/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.articles(), nil
}

// NewsAPI searches newsapi.org.
type NewsAPI struct {
	httpClient *httputil.Client
	baseURL    string
	apiKey     string
}

func NewNewsAPI(httpClient *httputil.Client, baseURL, apiKey string) *NewsAPI {
	return &NewsAPI{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

func (n *NewsAPI) Name() string { return "newsapi" }

func (n *NewsAPI) Search(ctx context.Context, query, lang string, max int) ([]Article, error) {
	if n.apiKey == "" {
		return nil, ErrMissingKey
	}
	q := url.Values{
		"q":        {query},
		"language": {lang},
		"pageSize": {strconv.Itoa(max)},
		"sortBy":   {"publishedAt"},
		"apiKey":   {n.apiKey},
	}
	var resp wireResponse
	if err := n.httpClient.GetJSON(ctx, n.baseURL+"/everything", q, &resp); err != nil {
		return nil, err
	}
	return resp.articles(), nil
}
