package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

const (
	testOrigin   = "https://shop.example.com/"
	testTemplate = "https://shop.example.com/games?p="
)

type entry struct {
	name, price, href string
}

// listingHTML renders a page in the default layout with the given entries
// and pagination links to pages 1..lastPage.
func listingHTML(lastPage int, entries ...entry) string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"catalog\">")
	for _, e := range entries {
		fmt.Fprintf(&b, `<div class="item item_table-header"><h3><a href=%q>%s</a></h3><span class="price">%s</span></div>`,
			e.href, e.name, e.price)
	}
	b.WriteString("</div><nav>")
	for p := 1; p <= lastPage; p++ {
		fmt.Fprintf(&b, `<a class="pagination-page" href="/games?p=%d">%d</a>`, p, p)
	}
	b.WriteString("</nav></body></html>")
	return b.String()
}

func testLayout() crawler.Layout {
	l := crawler.DefaultLayout()
	l.Origin = testOrigin
	return l
}

func origin(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(testOrigin)
	require.NoError(t, err)
	return u
}

// stubFetcher serves canned responses keyed by URL. failures holds the number
// of transport failures to return for a URL before serving it.
type stubFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	status   map[string]int
	failures map[string]int
	calls    []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages:    map[string]string{},
		status:   map[string]int{},
		failures: map[string]int{},
	}
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err := ctx.Err(); err != nil {
		return crawler.FetchResponse{}, &crawler.TransportError{URL: rawURL, Err: err}
	}
	if f.failures[rawURL] != 0 {
		if f.failures[rawURL] > 0 {
			f.failures[rawURL]--
		}
		return crawler.FetchResponse{}, &crawler.TransportError{URL: rawURL, Err: errors.New("connection reset by peer")}
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.TransportError{URL: rawURL, Err: errors.New("no such host")}
	}
	status := f.status[rawURL]
	if status == 0 {
		status = http.StatusOK
	}
	return crawler.FetchResponse{URL: rawURL, StatusCode: status, Body: []byte(body)}, nil
}

func (f *stubFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// failingDoc is a Document whose queries fail.
type failingDoc struct {
	err   error
	panic bool
}

func (d failingDoc) FindAll(string, string, string) ([]crawler.Element, error) {
	if d.panic {
		panic("selector engine exploded")
	}
	return nil, d.err
}

func (failingDoc) Text() string { return "" }
