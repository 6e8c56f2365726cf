package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestAll_PreservesInputOrder(t *testing.T) {
	// Later URLs respond faster, so completion order is the reverse of
	// request order.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			time.Sleep(60 * time.Millisecond)
		case "/b":
			time.Sleep(30 * time.Millisecond)
		}
		fmt.Fprint(w, r.URL.Path)
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	results := All(context.Background(), srv.Client(), urls, 3)

	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	for i, want := range []string{"/a", "/b", "/c"} {
		if results[i].Err != nil {
			t.Fatalf("results[%d] err: %v", i, results[i].Err)
		}
		if string(results[i].Body) != want {
			t.Errorf("results[%d] body = %q, want %q", i, results[i].Body, want)
		}
	}
}

func TestAll_DuplicateURLs(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		fmt.Fprintf(w, "call-%d", n)
	}))
	defer srv.Close()

	u := srv.URL + "/dup"
	results := All(context.Background(), srv.Client(), []string{u, u}, 2)

	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 requests, got %d", calls)
	}
	if results[0].Err != nil || results[1].Err != nil {
		t.Fatalf("errors: %v / %v", results[0].Err, results[1].Err)
	}
	// Each duplicate consumes its own response, never the same one twice.
	if string(results[0].Body) == string(results[1].Body) {
		t.Errorf("both duplicates got the same response: %q", results[0].Body)
	}
}

func TestAll_CollectAllOnPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	urls := []string{srv.URL + "/fine", "http://127.0.0.1:1/unreachable", srv.URL + "/also-fine"}
	results := All(context.Background(), http.DefaultClient, urls, 2)

	if results[0].Err != nil || string(results[0].Body) != "ok" {
		t.Errorf("results[0] = %v / %q", results[0].Err, results[0].Body)
	}
	if results[1].Err == nil {
		t.Error("expected error for unreachable URL")
	}
	if results[2].Err != nil || string(results[2].Body) != "ok" {
		t.Errorf("results[2] = %v / %q", results[2].Err, results[2].Body)
	}
}

func TestAll_EncodedURLCorrelation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Query().Get("id"))
	}))
	defer srv.Close()

	urls := []string{
		srv.URL + "/outcome?id=1%2C2%2C3",
		srv.URL + "/outcome?id=9",
	}
	results := All(context.Background(), srv.Client(), urls, 2)
	if string(results[0].Body) != "1,2,3" {
		t.Errorf("results[0] body = %q", results[0].Body)
	}
	if string(results[1].Body) != "9" {
		t.Errorf("results[1] body = %q", results[1].Body)
	}
}

func TestAll_BoundedWorkers(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}))
	defer srv.Close()

	var urls []string
	for i := 0; i < 12; i++ {
		urls = append(urls, fmt.Sprintf("%s/%d", srv.URL, i))
	}
	All(context.Background(), srv.Client(), urls, 3)

	if p := atomic.LoadInt32(&peak); p > 3 {
		t.Errorf("peak concurrency %d exceeds pool size 3", p)
	}
}

func TestAll_NonOKStatusIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	results := All(context.Background(), srv.Client(), []string{srv.URL + "/missing"}, 1)
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if results[0].Status != http.StatusNotFound {
		t.Errorf("status = %d", results[0].Status)
	}
}
