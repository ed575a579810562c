package autobib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

// newMRCapability builds the "mr" (MathSciNet) provider: canonical,
// fetched from the MathSciNet publications API. Grounded on original
// provider/mr.rs: a 7-digit numeric sub-id, a JSON envelope carrying a
// raw BibTeX "bib" string. Rather than depend on a general BibTeX parser
// (out of scope per spec §1), a handful of well-known fields are pulled
// out of the bib string with a narrow regex, matching only
// `key = {value}` and `key = "value"` pairs.
func newMRCapability(opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:           ProviderMR,
		Kind:          ProviderKindCanonical,
		SupportsFetch: true,
		Timeout:       10 * time.Second,
		validate: func(subID string) error {
			if len(subID) != 7 || !isAllDigits(subID) {
				return fmt.Errorf("MathSciNet id must be 7 digits: %q", subID)
			}
			return nil
		},
		fetch: func(ctx context.Context, subID string) FetchOutcome {
			return fetchMR(ctx, client, subID, opts.OnInsert)
		},
	}
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

type mathscinetEnvelope struct {
	Bib     string `json:"bib"`
	PaperID int    `json:"paperId"`
}

var bibFieldRE = regexp.MustCompile(`(?m)^\s*([a-zA-Z]+)\s*=\s*[{"]([^}"]*)[}"]`)
var bibEntryTypeRE = regexp.MustCompile(`@(\w+)\s*\{`)

func fetchMR(ctx context.Context, client *http.Client, subID string, hooks OnInsertConfig) FetchOutcome {
	q := url.Values{}
	q.Set("formats", "bib")
	q.Set("ids", subID)
	reqURL := "https://mathscinet.ams.org/mathscinet/api/publications/format?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return FetchOutcome{Status: FetchNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("mathscinet: http %s", resp.Status)}
	}

	var envelopes []mathscinetEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelopes); err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("mathscinet: decode json: %w", err)}
	}
	if len(envelopes) == 0 || envelopes[0].Bib == "" {
		return FetchOutcome{Status: FetchNotFound}
	}

	entryType := "article"
	if m := bibEntryTypeRE.FindStringSubmatch(envelopes[0].Bib); m != nil {
		entryType = m[1]
	}

	d := NewEntryData(entryType)
	d.Set("mrnumber", subID)
	for _, m := range bibFieldRE.FindAllStringSubmatch(envelopes[0].Bib, -1) {
		key, value := m[1], m[2]
		switch key {
		case "author", "title", "journal", "year", "volume", "number", "pages", "publisher", "doi", "issn":
			d.Set(key, value)
		}
	}

	applyOnInsertHooks(d, hooks)
	return FetchOutcome{Status: FetchEntry, Entry: d}
}
