package autobib

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ProviderTag is a namespace tag such as "doi" or "arxiv". Recognized
// tags match [a-z][a-z0-9]*.
type ProviderTag string

const (
	ProviderArxiv  ProviderTag = "arxiv"
	ProviderDOI    ProviderTag = "doi"
	ProviderISBN   ProviderTag = "isbn"
	ProviderJFM    ProviderTag = "jfm"
	ProviderLocal  ProviderTag = "local"
	ProviderMR     ProviderTag = "mr"
	ProviderOL     ProviderTag = "ol"
	ProviderZBL    ProviderTag = "zbl"
	ProviderZbMATH ProviderTag = "zbmath"
)

// ProviderKind distinguishes canonical providers (which own a namespace
// of stable ids) from reference providers (whose ids resolve to exactly
// one canonical id of another provider).
type ProviderKind int

const (
	ProviderKindCanonical ProviderKind = iota
	ProviderKindReference
)

// FetchOutcome is the result of a canonical provider's remote fetch.
type FetchOutcome struct {
	Status   FetchStatus
	Entry    *EntryData
	NetErr   error
}

// FetchStatus discriminates the three possible fetch results (spec
// §4.3/§4.6): a record was found, the provider definitively has no
// record, or the network call itself failed.
type FetchStatus int

const (
	FetchEntry FetchStatus = iota
	FetchNotFound
	FetchNetworkError
)

// Capability is a provider's fixed behavior table, per spec §4.3.
type Capability struct {
	Tag  ProviderTag
	Kind ProviderKind

	// ReferenceOf names the canonical provider a Reference provider
	// resolves into. Zero value for canonical providers.
	ReferenceOf ProviderTag

	// SupportsFetch is false for providers with no remote source
	// (only "local").
	SupportsFetch bool

	// Timeout is the default per-request timeout for this provider,
	// overridable by Config.ProviderTimeout.
	Timeout time.Duration

	validate  func(subID string) error
	normalize func(subID string) string
	resolve   func(ctx context.Context, subID string) (ProviderTag, string, error)
	fetch     func(ctx context.Context, subID string) FetchOutcome
	onInsert  []OnInsertHook
}

// Validate runs the provider's sub-id syntax check.
func (c *Capability) Validate(subID string) error {
	if c.validate == nil {
		return nil
	}
	return c.validate(subID)
}

// Normalize runs the provider's idempotent sub-id rewrite. It is safe to
// call on an already-normalized sub-id.
func (c *Capability) Normalize(subID string) string {
	if c.normalize == nil {
		return subID
	}
	return c.normalize(subID)
}

// Resolve maps a Reference sub-id to its canonical (provider, sub_id).
// Only meaningful for ProviderKindReference capabilities.
func (c *Capability) Resolve(ctx context.Context, subID string) (ProviderTag, string, error) {
	if c.resolve == nil {
		return "", "", newDatabaseError("resolve", errNotAReference)
	}
	return c.resolve(ctx, subID)
}

// Fetch retrieves a record from the provider's remote source. Only
// meaningful when SupportsFetch is true.
func (c *Capability) Fetch(ctx context.Context, subID string) FetchOutcome {
	if c.fetch == nil {
		return FetchOutcome{Status: FetchNotFound}
	}
	return c.fetch(ctx, subID)
}

// ApplyOnInsert runs the hooks in c.onInsert, in order, over d.
// NewRegistry leaves c.onInsert empty; the configured on_insert hooks
// (RegistryOptions.OnInsert) are applied inside each provider's fetch.
func (c *Capability) ApplyOnInsert(d *EntryData) {
	for _, h := range c.onInsert {
		h(d)
	}
}

// OnInsertHook is a normalization applied to a freshly fetched record
// before it is encoded and stored (spec §4.3).
type OnInsertHook func(d *EntryData)

// Registry is the fixed provider -> Capability mapping (spec §4.3, §9:
// "dynamic dispatch on provider collapses to a fixed registry").
type Registry struct {
	capabilities map[ProviderTag]*Capability
}

// httpClient returns opts.Client, defaulting to http.DefaultClient.
func (opts RegistryOptions) httpClient() *http.Client {
	if opts.Client != nil {
		return opts.Client
	}
	return http.DefaultClient
}

// Lookup returns the capability for tag, if recognized.
func (r *Registry) Lookup(tag ProviderTag) (*Capability, bool) {
	c, ok := r.capabilities[tag]
	return c, ok
}

// NewRegistry builds the standard registry of recognized providers
// (spec §4.3): arxiv, doi, mr, ol, zbmath, local are canonical; isbn
// references ol; jfm and zbl reference zbmath.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{capabilities: make(map[ProviderTag]*Capability)}

	register := func(c *Capability) {
		if t, ok := opts.Timeout[c.Tag]; ok {
			c.Timeout = t
		}
		rateLimitCapability(c, opts.rateLimiter(c.Tag))
		r.capabilities[c.Tag] = c
	}

	register(newArxivCapability(opts))
	register(newDOICapability(opts))
	register(newMRCapability(opts))
	register(newOLCapability(opts))
	register(newZbMATHCapability(opts))
	register(newLocalCapability())
	register(newISBNCapability(r, opts))
	register(newJFMCapability(r, opts))
	register(newZBLCapability(r, opts))

	return r
}

// RegistryOptions carries per-provider configuration into NewRegistry:
// timeouts, the configured on_insert hook set (spec §4.3, SPEC_FULL
// §4.8), and the HTTP client each provider should issue requests
// through. Client defaults to http.DefaultClient; tests substitute a
// client wrapping the response cache's RoundTripper (SPEC_FULL §4.10).
type RegistryOptions struct {
	Timeout  map[ProviderTag]time.Duration
	OnInsert OnInsertConfig
	Client   *http.Client

	// RateLimit overrides the per-provider request rate. Providers not
	// listed get defaultProviderRateLimit, generalizing the flat
	// time.Sleep(1-3s) pacing providers were throttled with in prior
	// single-purpose clients into a proper token-bucket limiter that
	// doesn't stall a burst of already-cached lookups.
	RateLimit map[ProviderTag]*rate.Limiter
}

// defaultProviderRateLimit caps every provider at one request per
// second with a burst of two, a conservative default for the small,
// courtesy-rate-limited public APIs this registry talks to.
func defaultProviderRateLimit() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(1), 2)
}

func (opts RegistryOptions) rateLimiter(tag ProviderTag) *rate.Limiter {
	if l, ok := opts.RateLimit[tag]; ok && l != nil {
		return l
	}
	return defaultProviderRateLimit()
}

// rateLimitCapability wraps c's fetch and resolve functions (if set) so
// every call first waits on limiter, advisory pacing against the
// provider's remote service rather than a correctness mechanism (no
// fetch/resolve call blocks the database, per spec §5's "provider
// fetches must be performed outside an open transaction"). When
// c.Timeout is positive, the call after the wait runs under a context
// with that timeout.
func rateLimitCapability(c *Capability, limiter *rate.Limiter) {
	if c.fetch != nil {
		inner := c.fetch
		c.fetch = func(ctx context.Context, subID string) FetchOutcome {
			if err := limiter.Wait(ctx); err != nil {
				return FetchOutcome{Status: FetchNetworkError, NetErr: err}
			}
			if c.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.Timeout)
				defer cancel()
			}
			return inner(ctx, subID)
		}
	}
	if c.resolve != nil {
		inner := c.resolve
		c.resolve = func(ctx context.Context, subID string) (ProviderTag, string, error) {
			if err := limiter.Wait(ctx); err != nil {
				return "", "", &NetworkError{Provider: c.Tag, Err: err}
			}
			if c.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, c.Timeout)
				defer cancel()
			}
			return inner(ctx, subID)
		}
	}
}

var errNotAReference = &InputError{Kind: "NotAReference"}
