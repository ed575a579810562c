package autobib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var doiIdentifierRE = regexp.MustCompile(`^10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+$`)

// newDOICapability builds the "doi" provider: canonical, fetched from
// the CrossRef works API. Grounded on original provider/doi.rs for the
// validation regex; the fetch uses CrossRef's JSON works endpoint rather
// than its BibTeX transform endpoint so that no BibTeX parser (an
// external collaborator per spec §1) is needed inside the core.
func newDOICapability(opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:           ProviderDOI,
		Kind:          ProviderKindCanonical,
		SupportsFetch: true,
		Timeout:       10 * time.Second,
		validate: func(subID string) error {
			if !doiIdentifierRE.MatchString(subID) {
				return fmt.Errorf("not a recognized DOI: %q", subID)
			}
			return nil
		},
		normalize: func(subID string) string {
			// Lower-case the registrant prefix ("10.XXXX"); the suffix
			// after the slash is left byte-for-byte since DOI suffixes
			// are case-sensitive in general.
			idx := strings.IndexByte(subID, '/')
			if idx < 0 {
				return strings.ToLower(subID)
			}
			return strings.ToLower(subID[:idx]) + subID[idx:]
		},
		fetch: func(ctx context.Context, subID string) FetchOutcome {
			return fetchDOI(ctx, client, subID, opts.OnInsert)
		},
	}
}

type crossrefEnvelope struct {
	Message crossrefWork `json:"message"`
}

type crossrefWork struct {
	Type           string              `json:"type"`
	Title          []string            `json:"title"`
	Author         []crossrefAuthor    `json:"author"`
	ContainerTitle []string            `json:"container-title"`
	Volume         string              `json:"volume"`
	Issue          string              `json:"issue"`
	Page           string              `json:"page"`
	Publisher      string              `json:"publisher"`
	Issued         crossrefDateParts   `json:"issued"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossrefDateParts struct {
	DateParts [][]int `json:"date-parts"`
}

func fetchDOI(ctx context.Context, client *http.Client, subID string, hooks OnInsertConfig) FetchOutcome {
	reqURL := "https://api.crossref.org/works/" + url.PathEscape(subID)
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
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("crossref: http %s", resp.Status)}
	}

	var env crossrefEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return FetchOutcome{Status: FetchNetworkError, NetErr: fmt.Errorf("crossref: decode json: %w", err)}
	}

	entryType := crossrefEntryType(env.Message.Type)
	d := NewEntryData(entryType)
	d.Set("doi", subID)
	if len(env.Message.Title) > 0 {
		d.Set("title", env.Message.Title[0])
	}
	if author := joinCrossrefAuthors(env.Message.Author); author != "" {
		d.Set("author", author)
	}
	if len(env.Message.ContainerTitle) > 0 {
		d.Set("journal", env.Message.ContainerTitle[0])
	}
	if env.Message.Volume != "" {
		d.Set("volume", env.Message.Volume)
	}
	if env.Message.Issue != "" {
		d.Set("number", env.Message.Issue)
	}
	if env.Message.Page != "" {
		d.Set("pages", strings.ReplaceAll(env.Message.Page, "-", "--"))
	}
	if env.Message.Publisher != "" {
		d.Set("publisher", env.Message.Publisher)
	}
	if y := crossrefYear(env.Message.Issued); y != "" {
		d.Set("year", y)
	}

	applyOnInsertHooks(d, hooks)
	return FetchOutcome{Status: FetchEntry, Entry: d}
}

// crossrefEntryType maps a CrossRef work "type" to a BibTeX entry type.
func crossrefEntryType(t string) string {
	switch t {
	case "journal-article":
		return "article"
	case "book", "monograph":
		return "book"
	case "book-chapter":
		return "incollection"
	case "proceedings-article":
		return "inproceedings"
	default:
		return "misc"
	}
}

func joinCrossrefAuthors(authors []crossrefAuthor) string {
	parts := make([]string, 0, len(authors))
	for _, a := range authors {
		switch {
		case a.Family != "" && a.Given != "":
			parts = append(parts, a.Family+", "+a.Given)
		case a.Family != "":
			parts = append(parts, a.Family)
		}
	}
	return strings.Join(parts, " and ")
}

func crossrefYear(dp crossrefDateParts) string {
	if len(dp.DateParts) == 0 || len(dp.DateParts[0]) == 0 {
		return ""
	}
	return strconv.Itoa(dp.DateParts[0][0])
}
