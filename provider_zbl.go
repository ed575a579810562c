package autobib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

var zblIdentifierRE = regexp.MustCompile(`^[0-9]{4}\.[0-9]{5}$`)

// zblEntryKeyRE extracts the "entry_key" of the BibTeX record zbMATH
// serves at /bibtex/<zbl-id>.bib, e.g. "@article{zbMATH06346461, ...}".
// Grounded on original provider/zbl.rs, which parses the same field out
// of the same endpoint but via a general BibTeX deserializer; a single
// regex suffices here because only the entry key (not the full record)
// is needed to resolve zbl -> zbmath.
var zblEntryKeyRE = regexp.MustCompile(`@\w+\{\s*zbMATH(\d+)`)

// newZBLCapability builds the "zbl" provider: a Reference provider over
// "zbmath".
func newZBLCapability(reg *Registry, opts RegistryOptions) *Capability {
	client := opts.httpClient()
	return &Capability{
		Tag:         ProviderZBL,
		Kind:        ProviderKindReference,
		ReferenceOf: ProviderZbMATH,
		Timeout:     10 * time.Second,
		validate: func(id string) error {
			if !zblIdentifierRE.MatchString(id) {
				return fmt.Errorf("not a recognized Zbl identifier: %q", id)
			}
			return nil
		},
		resolve: func(ctx context.Context, subID string) (ProviderTag, string, error) {
			return resolveZbl(ctx, client, subID)
		},
	}
}

func resolveZbl(ctx context.Context, client *http.Client, subID string) (ProviderTag, string, error) {
	reqURL := "https://zbmath.org/bibtex/" + subID + ".bib"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderZBL, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderZBL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", newInputError("BadSubId", "zbl: no record found for "+subID)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", &NetworkError{Provider: ProviderZBL, Err: fmt.Errorf("zbmath.org: http %s", resp.Status)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", &NetworkError{Provider: ProviderZBL, Err: err}
	}

	m := zblEntryKeyRE.FindSubmatch(body)
	if m == nil {
		return "", "", &NetworkError{Provider: ProviderZBL, Err: fmt.Errorf("zbmath.org: unexpected bibtex response for %s", subID)}
	}
	return ProviderZbMATH, string(m[1]), nil
}
