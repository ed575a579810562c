package autobib

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const arxivAPIBaseURL = "https://export.arxiv.org/api/query"

var (
	arxivNewStyleRE = regexp.MustCompile(`^\d{4}\.\d{4,5}(v\d+)?$`)
	arxivOldStyleRE = regexp.MustCompile(`^[a-z-]+(\.[A-Z]{2})?/\d{7}(v\d+)?$`)
)

// newArxivCapability builds the "arxiv" provider: canonical, fetched
// from the arXiv Atom API. Grounded on teacher fetch.go's
// fetchPaperMetadata (same request shape and Atom struct), adapted to
// produce EntryData instead of a Paper row.
func newArxivCapability(opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:           ProviderArxiv,
		Kind:          ProviderKindCanonical,
		SupportsFetch: true,
		Timeout:       10 * time.Second,
		validate:      validateArxivID,
		normalize:     normalizeArxivID,
		fetch: func(ctx context.Context, subID string) FetchOutcome {
			return fetchArxiv(ctx, client, subID, opts.OnInsert)
		},
	}
}

func validateArxivID(id string) error {
	if arxivNewStyleRE.MatchString(id) || arxivOldStyleRE.MatchString(id) {
		return nil
	}
	return fmt.Errorf("not a recognized arXiv identifier: %q", id)
}

// normalizeArxivID strips a version suffix, mirroring the original
// implementation's normalize() which treats "2301.00001v2" and
// "2301.00001" as the same canonical sub-id.
func normalizeArxivID(id string) string {
	if idx := strings.LastIndex(id, "v"); idx > 0 {
		if _, err := parseUintSuffix(id[idx+1:]); err == nil {
			return id[:idx]
		}
	}
	return id
}

func parseUintSuffix(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("not numeric")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}

type arxivAtomFeed struct {
	XMLName xml.Name        `xml:"feed"`
	Entries []arxivAtomItem `xml:"entry"`
}

type arxivAtomItem struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Authors    []arxivAuthor   `xml:"author"`
	Published  string          `xml:"published"`
	Updated    string          `xml:"updated"`
	DOI        string          `xml:"doi"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

func fetchArxiv(ctx context.Context, client *http.Client, subID string, hooks OnInsertConfig) FetchOutcome {
	url := fmt.Sprintf("%s?id_list=%s", arxivAPIBaseURL, subID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("arxiv: http %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: err}
	}

	var feed arxivAtomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("arxiv: parse xml: %w", err)}
	}
	if len(feed.Entries) == 0 {
		return FetchOutcome{Status: FetchNotFound}
	}

	entry := feed.Entries[0]

	var authors []string
	for _, a := range entry.Authors {
		authors = append(authors, a.Name)
	}

	d := NewEntryData("article")
	d.Set("arxiv", subID)
	d.Set("author", strings.Join(authors, " and "))
	d.Set("title", strings.TrimSpace(collapseWhitespace(entry.Title)))
	abstract := strings.TrimSpace(collapseWhitespace(entry.Summary))
	if abstract != "" {
		d.Set("abstract", abstract)
	}
	if entry.DOI != "" {
		d.Set("doi", strings.TrimSpace(entry.DOI))
	}

	if updated, err := time.Parse(time.RFC3339, entry.Updated); err == nil {
		d.Set("year", updated.Format("2006"))
		d.Set("month", updated.Format("01"))
	}
	if published, err := time.Parse(time.RFC3339, entry.Published); err == nil {
		d.Set("origdate", published.Format("2006-01-02"))
	}

	applyOnInsertHooks(d, hooks)
	return FetchOutcome{Status: FetchEntry, Entry: d}
}
