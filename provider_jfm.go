package autobib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

var jfmIdentifierRE = regexp.MustCompile(`^[0-9]{2}\.[0-9]{4}\.[0-9]{2}$`)

// jfmBibtexLinkRE finds the first "/bibtex/<zbmath-id>.bib" link on a
// JFM abstract page, the route to the canonical zbMATH id. Grounded on
// original provider/jfm.rs's BIBTEX_LINK_RE.
var jfmBibtexLinkRE = regexp.MustCompile(`/bibtex/([0-9]{8})\.bib`)

// newJFMCapability builds the "jfm" provider: a Reference provider over
// "zbmath".
func newJFMCapability(reg *Registry, opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:         ProviderJFM,
		Kind:        ProviderKindReference,
		ReferenceOf: ProviderZbMATH,
		Timeout:     10 * time.Second,
		validate: func(id string) error {
			if !jfmIdentifierRE.MatchString(id) {
				return fmt.Errorf("not a recognized JFM identifier: %q", id)
			}
			return nil
		},
		resolve: func(ctx context.Context, subID string) (ProviderTag, string, error) {
			return resolveJFM(ctx, client, subID)
		},
	}
}

func resolveJFM(ctx context.Context, client *http.Client, subID string) (ProviderTag, string, error) {
	reqURL := "https://zbmath.org/" + subID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderJFM, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderJFM, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", newInputError("BadSubId", "jfm: no record found for "+subID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", &NetworkError{Provider: ProviderJFM, Err: fmt.Errorf("zbmath.org: http %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderJFM, Err: err}
	}

	m := jfmBibtexLinkRE.FindSubmatch(body)
	if m == nil {
		return "", "", newInputError("BadSubId", "jfm: no zbMATH identifier found for "+subID)
	}
	// Multiple matches are possible for a single JFM id; the first is
	// taken, matching the original implementation's documented
	// limitation.
	return ProviderZbMATH, string(m[1]), nil
}
