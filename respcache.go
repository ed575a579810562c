package autobib

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// responseCacheEntry is one NDJSON line of the response cache log
// (spec §4.7). ID is for log correlation only, never used as a lookup
// key.
type responseCacheEntry struct {
	ID         string            `json:"id"`
	Key        string            `json:"key"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code"`
	Header     map[string]string `json:"header"`
	Body       string            `json:"body"` // base64 via encoding/json's []byte handling would obscure text bodies, so stored as a UTF-8-safe string: binary bodies are not expected from these providers
}

// ResponseCacheMode selects whether a ResponseCache is consulted for
// writing or replay (spec §4.7, §5: "never both").
type ResponseCacheMode int

const (
	ResponseCacheDisabled ResponseCacheMode = iota
	ResponseCacheRecord
	ResponseCacheReplay
)

// ResponseCache is a file-backed append-and-replay log of provider HTTP
// responses, keyed by (method, url, request-body-hash), for
// deterministic testing (spec §4.7). Its on-disk format is not stable
// across versions.
type ResponseCache struct {
	mode    ResponseCacheMode
	path    string
	mu      sync.Mutex
	entries map[string]responseCacheEntry // populated in Replay mode
	file    *os.File                      // open for append in Record mode
}

// OpenResponseCache opens the cache at path under mode. Record mode
// appends to (creating if absent) path; Replay mode loads the full log
// into memory up front.
func OpenResponseCache(path string, mode ResponseCacheMode) (*ResponseCache, error) {
	rc := &ResponseCache{mode: mode, path: path}
	switch mode {
	case ResponseCacheRecord:
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, newConfigError("open response cache: " + err.Error())
		}
		rc.file = f
	case ResponseCacheReplay:
		entries, err := loadResponseCacheEntries(path)
		if err != nil {
			return nil, err
		}
		rc.entries = entries
	}
	return rc, nil
}

func loadResponseCacheEntries(path string) (map[string]responseCacheEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newConfigError("open response cache: " + err.Error())
	}
	defer f.Close()

	entries := make(map[string]responseCacheEntry)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry responseCacheEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, newConfigError("malformed response cache entry: " + err.Error())
		}
		entries[entry.Key] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, newConfigError("read response cache: " + err.Error())
	}
	return entries, nil
}

// Close releases the cache's underlying file handle, if any.
func (rc *ResponseCache) Close() error {
	if rc.file != nil {
		return rc.file.Close()
	}
	return nil
}

// responseCacheKey computes sha256(method || url || body) hex-encoded.
func responseCacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(url))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// RoundTrip implements http.RoundTripper, routing every request through
// the cache instead of a real network call.
func (rc *ResponseCache) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = b
		req.Body = io.NopCloser(bytes.NewReader(b))
	}
	key := responseCacheKey(req.Method, req.URL.String(), body)

	switch rc.mode {
	case ResponseCacheReplay:
		rc.mu.Lock()
		entry, ok := rc.entries[key]
		rc.mu.Unlock()
		if !ok {
			return nil, &CacheMiss{Key: key}
		}
		header := http.Header{}
		for k, v := range entry.Header {
			header.Set(k, v)
		}
		return &http.Response{
			StatusCode: entry.StatusCode,
			Status:     fmt.Sprintf("%d %s", entry.StatusCode, http.StatusText(entry.StatusCode)),
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(entry.Body)),
			Request:    req,
		}, nil

	case ResponseCacheRecord:
		resp, err := http.DefaultTransport.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		resp.Body = io.NopCloser(bytes.NewReader(respBody))

		header := make(map[string]string, len(resp.Header))
		for k := range resp.Header {
			header[k] = resp.Header.Get(k)
		}
		entry := responseCacheEntry{
			ID:         uuid.NewString(),
			Key:        key,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     header,
			Body:       string(respBody),
		}
		line, merr := json.Marshal(entry)
		if merr != nil {
			return nil, merr
		}
		rc.mu.Lock()
		_, werr := rc.file.Write(append(line, '\n'))
		rc.mu.Unlock()
		if werr != nil {
			return nil, werr
		}
		return resp, nil

	default:
		return http.DefaultTransport.RoundTrip(req)
	}
}

// Client builds an *http.Client that routes every request through this
// cache, for injection as RegistryOptions.Client.
func (rc *ResponseCache) Client() *http.Client {
	return &http.Client{Transport: rc}
}
