package autobib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// newISBNCapability builds the "isbn" provider: a Reference provider
// over "ol" (spec §4.3). Validation checks the ISBN-10/13 checksum per
// original provider/isbn.rs; resolution queries OpenLibrary's ISBN
// lookup to find the corresponding edition key.
func newISBNCapability(reg *Registry, opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:         ProviderISBN,
		Kind:        ProviderKindReference,
		ReferenceOf: ProviderOL,
		validate:    validateISBN,
		normalize:   normalizeISBN,
		resolve: func(ctx context.Context, subID string) (ProviderTag, string, error) {
			return resolveISBN(ctx, client, subID)
		},
	}
}

// normalizeISBN strips hyphens and spaces, the form the checksum and
// remote lookup expect.
func normalizeISBN(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validateISBN(id string) error {
	id = normalizeISBN(id)
	switch len(id) {
	case 10:
		if !isbn10ChecksumValid(id) {
			return fmt.Errorf("invalid ISBN-10 checksum: %q", id)
		}
		return nil
	case 13:
		if !isbn13ChecksumValid(id) {
			return fmt.Errorf("invalid ISBN-13 checksum: %q", id)
		}
		return nil
	default:
		return fmt.Errorf("ISBN must have 10 or 13 digits, got %d: %q", len(id), id)
	}
}

func isbn10ChecksumValid(id string) bool {
	sum := 0
	for i := 0; i < 9; i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
		sum += (10 - i) * int(id[i]-'0')
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return id[9] == 'X' || id[9] == 'x'
	}
	return int(id[9]-'0') == check
}

func isbn13ChecksumValid(id string) bool {
	sum := 0
	for i := 0; i < 12; i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
		weight := 1
		if i%2 == 1 {
			weight = 3
		}
		sum += weight * int(id[i]-'0')
	}
	check := (10 - sum%10) % 10
	if id[12] < '0' || id[12] > '9' {
		return false
	}
	return int(id[12]-'0') == check
}

type olBooksAPIEntry struct {
	Data struct {
		Identifiers struct {
			OpenLibrary []string `json:"openlibrary"`
		} `json:"identifiers"`
	} `json:"data"`
}

// resolveISBN looks up the OpenLibrary edition key for an ISBN via the
// Books API, returning the canonical "ol" sub-id (the edition id minus
// the leading "OL", keeping the trailing "M").
func resolveISBN(ctx context.Context, client *http.Client, isbn string) (ProviderTag, string, error) {
	q := url.Values{}
	q.Set("bibkeys", "ISBN:"+isbn)
	q.Set("jscmd", "data")
	q.Set("format", "json")
	reqURL := "https://openlibrary.org/api/books?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderISBN, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderISBN, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", &NetworkError{Provider: ProviderISBN, Err: fmt.Errorf("openlibrary: http %s", resp.Status)}
	}

	var result map[string]olBooksAPIEntry
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", &NetworkError{Provider: ProviderISBN, Err: fmt.Errorf("openlibrary: decode json: %w", err)}
	}

	entry, ok := result["ISBN:"+isbn]
	if !ok || len(entry.Data.Identifiers.OpenLibrary) == 0 {
		return "", "", newInputError("BadSubId", "isbn: no OpenLibrary edition found for "+isbn)
	}

	key := entry.Data.Identifiers.OpenLibrary[0]
	subID := strings.TrimSuffix(strings.TrimPrefix(key, "OL"), "M")
	return ProviderOL, subID + "M", nil
}
