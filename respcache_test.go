package autobib

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
)

func writeResponseCacheFile(t *testing.T, path string, entries ...responseCacheEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestResponseCacheReplayHit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.ndjson")
	url := "https://api.crossref.org/works/10.1000%2Fx"
	key := responseCacheKey(http.MethodGet, url, nil)
	writeResponseCacheFile(t, path, responseCacheEntry{
		ID: "test", Key: key, Method: http.MethodGet, URL: url, StatusCode: 200, Body: `{"ok":true}`,
	})

	rc, err := OpenResponseCache(path, ResponseCacheReplay)
	if err != nil {
		t.Fatalf("OpenResponseCache: %v", err)
	}
	defer rc.Close()

	client := rc.Client()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("client.Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Fatalf("got body %q, want {\"ok\":true}", body)
	}
}

func TestResponseCacheReplayMiss(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.ndjson")
	writeResponseCacheFile(t, path)

	rc, err := OpenResponseCache(path, ResponseCacheReplay)
	if err != nil {
		t.Fatalf("OpenResponseCache: %v", err)
	}
	defer rc.Close()

	req, err := http.NewRequest(http.MethodGet, "https://example.com/unrecorded", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	_, err = rc.Client().Do(req)
	if err == nil {
		t.Fatal("expected CacheMiss error for an unrecorded request")
	}
}

func TestResponseCacheKeyIsStableAndBodySensitive(t *testing.T) {
	k1 := responseCacheKey("GET", "https://x/y", []byte("a"))
	k2 := responseCacheKey("GET", "https://x/y", []byte("a"))
	k3 := responseCacheKey("GET", "https://x/y", []byte("b"))
	if k1 != k2 {
		t.Fatal("responseCacheKey is not stable for identical input")
	}
	if k1 == k3 {
		t.Fatal("responseCacheKey ignored a different request body")
	}
}

func TestOpenResponseCacheReplayMissingFile(t *testing.T) {
	_, err := OpenResponseCache(filepath.Join(t.TempDir(), "absent.ndjson"), ResponseCacheReplay)
	if err == nil {
		t.Fatal("expected an error opening a nonexistent replay log")
	}
}
