package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := Registry()
	Init()
	if Registry() != first {
		t.Fatal("Init() replaced the registry on a second call")
	}
}

func TestObserversIncrementCollectors(t *testing.T) {
	before := testutil.ToFloat64(geocodeLookupsTotalFor("matched"))
	ObserveLookup("matched")
	if got := testutil.ToFloat64(geocodeLookupsTotalFor("matched")); got != before+1 {
		t.Fatalf("expected lookup counter to grow by 1, got %f -> %f", before, got)
	}

	Init()
	gapsBefore := testutil.ToFloat64(rankGapsTotal.WithLabelValues("Top 100"))
	ObserveRankGaps("Top 100", 2)
	ObserveRankGaps("Top 100", 0)
	if got := testutil.ToFloat64(rankGapsTotal.WithLabelValues("Top 100")); got != gapsBefore+2 {
		t.Fatalf("expected rank gaps to grow by 2, got %f -> %f", gapsBefore, got)
	}

	ObserveFetch("https://example.com/a", "ok", 10*time.Millisecond)
	if got := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("example.com", "ok")); got < 1 {
		t.Fatalf("expected fetch attempt recorded, got %f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	ObserveCacheHit()
	path := filepath.Join(t.TempDir(), "coffeemap.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "coffeemap_cache_hits_total") {
		t.Fatalf("expected cache hits metric in textfile, got:\n%s", data)
	}
}

func TestWriteTextfileDisabled(t *testing.T) {
	if err := WriteTextfile(""); err != nil {
		t.Fatalf("expected empty path to be a no-op, got %v", err)
	}
}

func geocodeLookupsTotalFor(outcome string) prometheus.Counter {
	Init()
	return geocodeLookupsTotal.WithLabelValues(outcome)
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
