package autobib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var olIdentifierRE = regexp.MustCompile(`^[0-9]{1,9}M$`)

// newOLCapability builds the "ol" provider: canonical, fetched from the
// OpenLibrary books API. Grounded on original provider/ol.rs: sub-id is
// an OpenLibrary edition key digit sequence ending in "M"
// ("OL<id>M" -> sub-id "<id>M").
func newOLCapability(opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:           ProviderOL,
		Kind:          ProviderKindCanonical,
		SupportsFetch: true,
		Timeout:       10 * time.Second,
		validate: func(subID string) error {
			if !olIdentifierRE.MatchString(subID) {
				return fmt.Errorf("not a recognized OpenLibrary edition id: %q", subID)
			}
			return nil
		},
		fetch: func(ctx context.Context, subID string) FetchOutcome {
			return fetchOL(ctx, client, subID, opts.OnInsert)
		},
	}
}

type olRecord struct {
	Authors       []olAuthorRef `json:"authors"`
	FullTitle     string        `json:"full_title"`
	EditionName   string        `json:"edition_name"`
	NumberOfPages int           `json:"number_of_pages"`
	Subtitle      string        `json:"subtitle"`
	ISBN13        []string      `json:"isbn_13"`
	PublishDate   string        `json:"publish_date"`
	PublishPlaces []string      `json:"publish_places"`
	Publishers    []string      `json:"publishers"`
	Title         string        `json:"title"`
}

type olAuthorRef struct {
	Key string `json:"key"`
}

type olAuthorRecord struct {
	Name string `json:"name"`
}

func fetchOL(ctx context.Context, client *http.Client, subID string, hooks OnInsertConfig) FetchOutcome {
	reqURL := "https://openlibrary.org/books/OL" + url.PathEscape(subID) + ".json"
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
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("openlibrary: http %s", resp.Status)}
	}

	var rec olRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("openlibrary: decode json: %w", err)}
	}

	d := NewEntryData("book")
	if len(rec.PublishPlaces) > 0 {
		d.Set("address", rec.PublishPlaces[0])
	}
	if author := fetchOLAuthors(ctx, client, rec.Authors); author != "" {
		d.Set("author", author)
	}
	if rec.EditionName != "" {
		d.Set("edition", rec.EditionName)
	}
	if rec.NumberOfPages > 0 {
		d.Set("pagetotal", fmt.Sprintf("%d", rec.NumberOfPages))
	}
	if rec.Subtitle != "" {
		d.Set("subtitle", rec.Subtitle)
	}
	if len(rec.ISBN13) > 0 {
		d.Set("isbn", rec.ISBN13[0])
	}
	if rec.PublishDate != "" {
		d.Set("date", rec.PublishDate)
		if year := extractYear(rec.PublishDate); year != "" {
			d.Set("year", year)
		}
	}
	if len(rec.Publishers) > 0 {
		d.Set("publisher", rec.Publishers[0])
	}
	if rec.Title != "" {
		d.Set("title", rec.Title)
	} else if rec.FullTitle != "" {
		d.Set("title", rec.FullTitle)
	}

	applyOnInsertHooks(d, hooks)
	return FetchOutcome{Status: FetchEntry, Entry: d}
}

// fetchOLAuthors resolves each author key to a display name. Best
// effort: a failed lookup is silently skipped, never surfaced as a
// NetworkError for the overall fetch.
func fetchOLAuthors(ctx context.Context, client *http.Client, refs []olAuthorRef) string {
	if len(refs) == 0 {
		return ""
	}
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref.Key == "" {
			continue
		}
		reqURL := "https://openlibrary.org" + ref.Key + ".json"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			continue
		}
		var author olAuthorRecord
		if resp.StatusCode == http.StatusOK {
			_ = json.NewDecoder(resp.Body).Decode(&author)
		}
		resp.Body.Close()
		if author.Name != "" {
			names = append(names, author.Name)
		}
	}
	return strings.Join(names, " and ")
}

func extractYear(date string) string {
	re := regexp.MustCompile(`\b(1[5-9]\d\d|20\d\d)\b`)
	return re.FindString(date)
}
