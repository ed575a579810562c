// Package autobib maintains a local, versioned database of bibliographic
// records keyed by stable identifiers (DOI, arXiv, ISBN, zbMATH,
// MathSciNet, OpenLibrary, and user-defined aliases).
//
// This package implements:
//   - identifier parsing and normalization across providers
//   - a compact, canonical on-disk record encoding
//   - a persistent edit-tree of record revisions per canonical identifier
//   - a citation-key index mapping identifiers to active revisions
//   - a resolution pipeline mediating between the local store and
//     remote providers, including negative caching
//
// Argument parsing, BibTeX/LaTeX file parsing and configuration template
// rendering are external collaborators and are not implemented here. The
// provider_*.go files issue each provider's HTTP requests and parse its
// responses.
//
// Basic usage:
//
//	reg := autobib.NewRegistry(autobib.RegistryOptions{})
//	store, err := autobib.Open("/path/to/autobib.db", autobib.OpenOptions{Registry: reg})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	outcome := store.Resolve(ctx, "doi:10.4007/annals.2014.180.2.7", nil)
//	if outcome.Kind == autobib.OutcomeEntry {
//		fmt.Println(outcome.CiteKey)
//	}
package autobib
