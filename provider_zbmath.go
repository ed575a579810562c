package autobib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// newZbMATHCapability builds the "zbmath" provider: canonical, fetched
// from the zbMATH Open API. Grounded on original
// provider/zbmath/response.rs for the field mapping (entry type from
// document_type.code, author list, links -> arxiv/doi, series ->
// journal/volume/issue/year).
func newZbMATHCapability(opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:           ProviderZbMATH,
		Kind:          ProviderKindCanonical,
		SupportsFetch: true,
		Timeout:       10 * time.Second,
		validate:      validateZbMATHID,
		normalize:     normalizeZbMATHID,
		fetch: func(ctx context.Context, subID string) FetchOutcome {
			return fetchZbMATH(ctx, client, subID, opts.OnInsert)
		},
	}
}

func validateZbMATHID(id string) error {
	if (len(id) == 8 || len(id) == 7) && isAllDigits(id) {
		return nil
	}
	return fmt.Errorf("zbMATH id must be 7 or 8 digits: %q", id)
}

// normalizeZbMATHID left-pads a 7-digit id to the canonical 8-digit
// form, matching the original's ValidationOutcome::Normalize branch.
func normalizeZbMATHID(id string) string {
	if len(id) == 7 {
		return "0" + id
	}
	return id
}

type zbmathEnvelope struct {
	Result zbmathEntry `json:"result"`
}

type zbmathEntry struct {
	Contributors struct {
		Authors []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"contributors"`
	DocumentType struct {
		Code string `json:"code"`
	} `json:"document_type"`
	ID         int    `json:"id"`
	Identifier string `json:"identifier"`
	Database   string `json:"database"`
	Language   struct {
		Languages []string `json:"languages"`
	} `json:"language"`
	Links []struct {
		Identifier string `json:"identifier"`
		Type       string `json:"type"`
	} `json:"links"`
	Source struct {
		Book []struct {
			Publisher string `json:"publisher"`
			Year      string `json:"year"`
		} `json:"book"`
		Pages  string `json:"pages"`
		Series []struct {
			Issue      string `json:"issue"`
			Publisher  string `json:"publisher"`
			ShortTitle string `json:"short_title"`
			Volume     string `json:"volume"`
			Year       string `json:"year"`
		} `json:"series"`
	} `json:"source"`
	Title struct {
		Addition string `json:"addition"`
		Original string `json:"original"`
		Subtitle string `json:"subtitle"`
		Title    string `json:"title"`
	} `json:"title"`
}

func zbmathEntryType(code string) string {
	switch code {
	case "a":
		return "incollection"
	case "b":
		return "book"
	case "j":
		return "article"
	default:
		return "misc"
	}
}

func fetchZbMATH(ctx context.Context, client *http.Client, subID string, hooks OnInsertConfig) FetchOutcome {
	reqURL := "https://api.zbmath.org/v1/document/" + url.PathEscape(subID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return FetchOutcome{Status: FetchNotFound}
	case http.StatusOK:
	default:
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("zbmath: http %s", resp.Status)}
	}

	var env zbmathEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("zbmath: decode json: %w", err)}
	}

	entry := env.Result
	d := NewEntryData(zbmathEntryType(entry.DocumentType.Code))

	var authors []string
	for _, a := range entry.Contributors.Authors {
		authors = append(authors, a.Name)
	}
	if len(authors) > 0 {
		d.Set("author", strings.Join(authors, " and "))
	}
	if len(entry.Language.Languages) > 0 {
		d.Set("language", strings.Join(entry.Language.Languages, ", "))
	}

	d.Set("zbmath", fmt.Sprintf("%08d", entry.ID))
	if entry.Identifier != "" {
		switch strings.ToLower(entry.Database) {
		case "zbl":
			d.Set("zbl", entry.Identifier)
		case "jfm":
			d.Set("jfm", entry.Identifier)
		}
	}

	for _, link := range entry.Links {
		switch link.Type {
		case "arxiv":
			d.Set("arxiv", link.Identifier)
		case "doi":
			d.Set("doi", link.Identifier)
		}
	}

	if entry.Title.Addition != "" {
		d.Set("titleaddon", entry.Title.Addition)
	}
	if entry.Title.Subtitle != "" {
		d.Set("subtitle", entry.Title.Subtitle)
	}
	if entry.Title.Original != "" {
		d.Set("origtitle", entry.Title.Original)
	}
	if entry.Title.Title != "" {
		d.Set("title", entry.Title.Title)
	}

	if entry.Source.Pages != "" {
		d.Set("pages", strings.ReplaceAll(entry.Source.Pages, "-", "--"))
	}
	for _, book := range entry.Source.Book {
		if book.Publisher != "" {
			d.Set("publisher", book.Publisher)
		}
		if book.Year != "" {
			d.Set("year", book.Year)
		}
	}
	for _, series := range entry.Source.Series {
		if series.Issue != "" {
			d.Set("issue", series.Issue)
		}
		if series.Publisher != "" {
			d.Set("publisher", series.Publisher)
		}
		if series.ShortTitle != "" {
			d.Set("journal", series.ShortTitle)
		}
		if series.Volume != "" {
			d.Set("volume", series.Volume)
		}
		if series.Year != "" {
			d.Set("year", series.Year)
		}
	}

	applyOnInsertHooks(d, hooks)
	return FetchOutcome{Status: FetchEntry, Entry: d}
}
