package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/polzat/internal/crawler"
)

const fixturePage = `<html><head><title> Index </title></head><body>
<a href="/one">one</a>
<a href="/one#frag">one again</a>
<a href="two">two</a>
<a href="https://other.test/x">other</a>
<a href="mailto:someone@example.com">mail</a>
<a href="#top">top</a>
<a href="javascript:void(0)">js</a>
</body></html>`

func newFixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/dir/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Seen-Agent", r.UserAgent())
		_, _ = fmt.Fprint(w, fixturePage)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollyFetcherExtractsTitleAndLinks(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t)
	f, err := NewCollyFetcher(CollyConfig{UserAgent: "polzat-test"}, nil)
	require.NoError(t, err)

	page, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/dir/", URLType: crawler.URLTypeWeb})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Equal(t, "Index", page.Title)
	require.Equal(t, "polzat-test", page.Headers.Get("X-Seen-Agent"))
	require.Contains(t, string(page.Body), "<title>")
	require.Equal(t, []string{
		srv.URL + "/one",
		srv.URL + "/dir/two",
		"https://other.test/x",
	}, page.Links)
}

func TestCollyFetcherErrorStatus(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t)
	f, err := NewCollyFetcher(CollyConfig{}, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{URL: srv.URL + "/missing"})
	require.Error(t, err)
}

func TestCollyFetcherContextCanceled(t *testing.T) {
	t.Parallel()

	srv := newFixtureServer(t)
	f, err := NewCollyFetcher(CollyConfig{Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, crawler.FetchRequest{URL: srv.URL + "/slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCollyFetcherTorWithoutProxy(t *testing.T) {
	t.Parallel()

	f, err := NewCollyFetcher(CollyConfig{}, nil)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), crawler.FetchRequest{
		URL:     "http://abcdefghijklmnop.onion/",
		URLType: crawler.URLTypeTorHiddenService,
	})
	require.True(t, errors.Is(err, ErrTorUnavailable))
}

func TestNewCollyFetcherWithTorProxy(t *testing.T) {
	t.Parallel()

	f, err := NewCollyFetcher(CollyConfig{TorProxyAddress: "127.0.0.1:9050"}, nil)
	require.NoError(t, err)
	require.NotNil(t, f.tor)

	_, err = newTorTransport("  ")
	require.ErrorIs(t, err, ErrTorUnavailable)
}

func TestNormalizeLink(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("http://a.test/dir/page")
	require.NoError(t, err)

	tests := []struct {
		href string
		want string
		ok   bool
	}{
		{"/x", "http://a.test/x", true},
		{"y", "http://a.test/dir/y", true},
		{"https://b.test/z#frag", "https://b.test/z", true},
		{"//c.test/q", "http://c.test/q", true},
		{"#top", "", false},
		{"", "", false},
		{"ftp://files.test/f", "", false},
		{"mailto:x@y.test", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeLink(base, tt.href)
		require.Equal(t, tt.ok, ok, tt.href)
		require.Equal(t, tt.want, got, tt.href)
	}
}
