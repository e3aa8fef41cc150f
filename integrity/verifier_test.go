package integrity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVerifyMatchingContent(t *testing.T) {
	original := []byte("snapshot bytes that round-tripped intact")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(original)
	}))
	defer srv.Close()

	check := NewVerifier().Verify(context.Background(), "a1", srv.URL, original, int64(len(original)))
	if !check.IsValid {
		t.Fatalf("expected valid check, got %+v", check)
	}
	if check.VerifiedSize != int64(len(original)) {
		t.Errorf("verified size %d, want %d", check.VerifiedSize, len(original))
	}
	if check.Checksum != Checksum(original) {
		t.Errorf("checksum mismatch: %s", check.Checksum)
	}
}

func TestVerifyLengthMismatchIsInvalid(t *testing.T) {
	original := []byte("the original bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("truncated"))
	}))
	defer srv.Close()

	check := NewVerifier().Verify(context.Background(), "a1", srv.URL, original, int64(len(original)))
	if check.IsValid {
		t.Fatal("length mismatch must be invalid")
	}
	// The checksum machinery never ran; the size difference alone decides.
	if check.Checksum != "" {
		t.Errorf("checksum should be empty on size mismatch, got %s", check.Checksum)
	}
	if check.VerifiedSize != int64(len("truncated")) {
		t.Errorf("verified size %d", check.VerifiedSize)
	}
}

func TestVerifyFetchFailureIsInvalid(t *testing.T) {
	check := NewVerifier().Verify(context.Background(), "a1", "http://127.0.0.1:1/gone", []byte("x"), 1)
	if check.IsValid {
		t.Fatal("unreachable snapshot must be invalid")
	}
	if check.VerifiedSize != 0 {
		t.Errorf("verified size %d, want 0", check.VerifiedSize)
	}
}

func TestVerifyCorruptedContentIsInvalid(t *testing.T) {
	original := []byte("abcdefgh")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("abcdefgX"))
	}))
	defer srv.Close()

	check := NewVerifier().Verify(context.Background(), "a1", srv.URL, original, int64(len(original)))
	if check.IsValid {
		t.Fatal("same-length corruption must fail the checksum")
	}
	if check.Checksum == "" {
		t.Error("checksum should have been computed for equal lengths")
	}
}

func TestVerifySizeTolerance(t *testing.T) {
	body := make([]byte, 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	v := NewVerifier()
	ctx := context.Background()

	if check := v.VerifySize(ctx, "a1", srv.URL, 1005); !check.IsValid {
		t.Errorf("0.5%% drift should pass: %+v", check)
	}
	if check := v.VerifySize(ctx, "a1", srv.URL, 1100); check.IsValid {
		t.Errorf("10%% drift should fail: %+v", check)
	}
}
