package extraction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stashpad/config"
	"stashpad/types"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
<title>Fallback Title</title>
<meta property="og:title" content="How Go Schedules Goroutines" />
<meta property="og:description" content="A walk through the runtime scheduler." />
<meta property="og:image" content="https://example.com/cover.png" />
<meta property="og:site_name" content="Example Engineering" />
<meta property="article:published_time" content="2024-03-15T10:30:00Z" />
</head>
<body>
<p>Hi</p>
<p>The Go scheduler multiplexes goroutines onto a small number of OS threads.</p>
<p>Work stealing keeps idle processors busy without central coordination.</p>
</body>
</html>`

func TestExtractBasicHTMLReadsOpenGraphMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	content := NewExtractor().Extract(context.Background(), srv.URL, Options{})

	if content.ExtractionMethod != types.MethodBasicHTML {
		t.Fatalf("expected method %q, got %q", types.MethodBasicHTML, content.ExtractionMethod)
	}
	if content.Title != "How Go Schedules Goroutines" {
		t.Errorf("unexpected title %q", content.Title)
	}
	if content.Excerpt != "A walk through the runtime scheduler." {
		t.Errorf("unexpected excerpt %q", content.Excerpt)
	}
	if content.ImageURL != "https://example.com/cover.png" {
		t.Errorf("unexpected image %q", content.ImageURL)
	}
	if content.PublishedDate == nil || content.PublishedDate.Year() != 2024 {
		t.Errorf("unexpected published date %v", content.PublishedDate)
	}
	// The two-character paragraph is boilerplate and must be dropped.
	if content.WordCount == 0 {
		t.Error("expected non-zero word count")
	}
	if strings.Contains(content.Content, "Hi") {
		t.Error("short paragraph should have been filtered")
	}
}

func TestExtractFallsBackToTitleTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Only a Title</title></head><body><p>Some paragraph long enough to count as content.</p></body></html>`))
	}))
	defer srv.Close()

	content := NewExtractor().Extract(context.Background(), srv.URL, Options{})
	if content.Title != "Only a Title" {
		t.Errorf("unexpected title %q", content.Title)
	}
}

func TestExtractNeverRaises(t *testing.T) {
	// Unreachable host: both extraction tiers fail and the zero-value
	// result must still be well formed.
	content := NewExtractor().Extract(context.Background(), "http://127.0.0.1:1/nothing", Options{
		Timeout:    500 * time.Millisecond,
		UsePrimary: true,
	})

	if content.ExtractionMethod != types.MethodFallback {
		t.Fatalf("expected method %q, got %q", types.MethodFallback, content.ExtractionMethod)
	}
	if content.Title != "127.0.0.1" {
		t.Errorf("expected hostname title, got %q", content.Title)
	}
	if content.ExtractionError == "" {
		t.Error("expected extraction error to be recorded")
	}
}

func TestExtractServerErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	content := NewExtractor().Extract(context.Background(), srv.URL, Options{})
	if content.ExtractionMethod != types.MethodFallback {
		t.Fatalf("expected method %q, got %q", types.MethodFallback, content.ExtractionMethod)
	}
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 0},
		{-5, 0},
		{1, 1},
		{config.WordsPerMinute, 1},
		{config.WordsPerMinute + 1, 2},
		{config.WordsPerMinute * 10, 10},
	}

	for _, tt := range tests {
		if got := ReadingTime(tt.words); got != tt.want {
			t.Errorf("ReadingTime(%d) = %d, want %d", tt.words, got, tt.want)
		}
	}
}

func TestReadingTimeMonotonic(t *testing.T) {
	prev := 0
	for words := 0; words <= config.WordsPerMinute*5; words += 37 {
		got := ReadingTime(words)
		if got < prev {
			t.Fatalf("ReadingTime decreased at %d words: %d < %d", words, got, prev)
		}
		prev = got
	}
}

func TestCountWords(t *testing.T) {
	if got := CountWords("  one   two\nthree\t"); got != 3 {
		t.Errorf("CountWords = %d, want 3", got)
	}
	if got := CountWords(""); got != 0 {
		t.Errorf("CountWords(empty) = %d, want 0", got)
	}
}
