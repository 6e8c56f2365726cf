// Package fetch issues a batch of GET requests concurrently and reassembles
// the responses in the original request order. Callers get positional
// correspondence (responses[i] belongs to urls[i]) together with the
// throughput of a bounded worker pool.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// DefaultWorkers bounds batch concurrency when the caller does not.
const DefaultWorkers = 10

// Doer is the subset of *http.Client the pool needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is one URL's outcome. Exactly one of Body/Err is meaningful; Status
// is set whenever a response was received, regardless of status class.
type Result struct {
	URL    string
	Status int
	Body   []byte
	Err    error
}

type completion struct {
	key      string
	consumed bool
	res      Result
}

// All fetches every URL and returns results aligned with the input order.
//
// The policy is collect-all: a failed URL carries its own Err and never
// aborts the rest of the batch. Responses are matched back to their
// originating URL by URL-decoded exact match, not by completion order, and
// duplicate input URLs each consume one matching response.
func All(ctx context.Context, doer Doer, urls []string, workers int) []Result {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan string)
	var mu sync.Mutex
	completions := make([]*completion, 0, len(urls))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for u := range jobs {
				c := fetchOne(ctx, doer, u)
				mu.Lock()
				completions = append(completions, c)
				mu.Unlock()
			}
		}()
	}
	for _, u := range urls {
		jobs <- u
	}
	close(jobs)
	wg.Wait()

	out := make([]Result, len(urls))
	for i, u := range urls {
		key := decodeKey(u)
		matched := false
		for _, c := range completions {
			if !c.consumed && c.key == key {
				c.consumed = true
				out[i] = c.res
				out[i].URL = u
				matched = true
				break
			}
		}
		if !matched {
			out[i] = Result{URL: u, Err: fmt.Errorf("no response matched %q", u)}
		}
	}
	return out
}

// fetchOne performs a single GET. The correlation key is the request URL as
// the transport sent it, URL-decoded, so redirects and retries cannot detach
// a response from its originating URL.
func fetchOne(ctx context.Context, doer Doer, rawURL string) *completion {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return &completion{key: decodeKey(rawURL), res: Result{Err: fmt.Errorf("new request: %w", err)}}
	}
	key := decodeKey(req.URL.String())

	resp, err := doer.Do(req)
	if err != nil {
		return &completion{key: key, res: Result{Err: fmt.Errorf("do request: %w", err)}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &completion{key: key, res: Result{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}}
	}
	return &completion{key: key, res: Result{Status: resp.StatusCode, Body: body}}
}

func decodeKey(rawURL string) string {
	if dec, err := url.QueryUnescape(rawURL); err == nil {
		return dec
	}
	return rawURL
}
