package autobib

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level, user-editable configuration (SPEC_FULL
// §4.8). It is loaded once at startup (spec §5: "Configuration is read
// once at startup") and never mutated afterward.
type Config struct {
	// AliasTransform lists (regex, provider) rules applied to any Alias
	// identifier before the fast-path lookup (spec §4.2).
	AliasTransform []AliasRuleConfig `yaml:"alias_transform"`
	// CreateAlias is parsed from the config file, but Resolve does not
	// read it: the original alias text is not indexed after an
	// alias_transform rule rewrites it.
	CreateAlias bool `yaml:"create_alias"`

	// ConflictPolicy is the default merge policy for `update` (spec
	// §4.5, §9). One of "prefer-current", "prefer-incoming", "prompt".
	ConflictPolicy string `yaml:"conflict_policy"`

	// OnInsert configures the normalization hooks applied to freshly
	// fetched records (spec §4.3).
	OnInsert OnInsertConfig `yaml:"on_insert"`

	// ProviderTimeout overrides a provider's default request timeout,
	// keyed by provider tag (spec §4.3's Timeout field).
	ProviderTimeout map[string]time.Duration `yaml:"provider_timeout"`

	// NoInteractive mirrors the CLI's --no-interactive flag (spec §5):
	// any required prompt fails instead of blocking, and conflict
	// resolution defaults to prefer-current.
	NoInteractive bool `yaml:"no_interactive"`

	// NegativeCacheTTL bounds how long a NullRecord is honored before
	// resolve retries the provider (SPEC_FULL addition, see resolve.go).
	// Zero means "never expire", matching spec §4.6 literally.
	NegativeCacheTTL time.Duration `yaml:"negative_cache_ttl"`
}

// AliasRuleConfig is the YAML form of an AliasRule: Provider is a plain
// string here, validated and converted to a ProviderTag at load time.
type AliasRuleConfig struct {
	Pattern  string `yaml:"pattern"`
	Provider string `yaml:"provider"`
}

// DefaultConfig returns the configuration used when no config file is
// present: no alias transforms, prefer-current conflict resolution,
// hooks left off, and the hard-coded 30-day negative-cache TTL.
func DefaultConfig() *Config {
	return &Config{
		ConflictPolicy:   "prefer-current",
		ProviderTimeout:  map[string]time.Duration{},
		NegativeCacheTTL: defaultNegativeCacheTTL,
	}
}

// LoadConfig reads and validates a YAML configuration file at path. A
// missing file is not an error: DefaultConfig is returned instead,
// since configuration loading itself is an external-collaborator
// concern per spec §1 and a bare autobib install should work out of the
// box.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, newConfigError("read config: " + err.Error())
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, newConfigError("parse config: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants LoadConfig cannot enforce through
// unmarshaling alone: alias pattern regex validity and capture-group
// count, and that ConflictPolicy names a recognized policy.
func (c *Config) Validate() error {
	for _, rule := range c.AliasTransform {
		r := AliasRule{Pattern: rule.Pattern, Provider: ProviderTag(rule.Provider)}
		if err := r.compile(); err != nil {
			return newConfigError(fmt.Sprintf("alias_transform %q: %v", rule.Pattern, err))
		}
	}
	switch c.ConflictPolicy {
	case "", "prefer-current", "prefer-incoming", "prompt":
	default:
		return newConfigError("conflict_policy: unrecognized value " + c.ConflictPolicy)
	}
	return nil
}

// ResolvedAliasRules compiles Config's AliasTransform entries into
// AliasRules ready for ApplyAliasTransform.
func (c *Config) ResolvedAliasRules() ([]AliasRule, error) {
	rules := make([]AliasRule, 0, len(c.AliasTransform))
	for _, r := range c.AliasTransform {
		rules = append(rules, AliasRule{Pattern: r.Pattern, Provider: ProviderTag(r.Provider)})
	}
	if err := CompileAliasRules(rules); err != nil {
		return nil, newConfigError(err.Error())
	}
	return rules, nil
}

// ConflictPolicyValue converts the configured string into a
// ConflictPolicy, honoring NoInteractive's override to prefer-current
// (spec §5: "defaults for conflict resolution become prefer-current").
func (c *Config) ConflictPolicyValue() ConflictPolicy {
	if c.NoInteractive {
		return PreferCurrent
	}
	switch c.ConflictPolicy {
	case "prefer-incoming":
		return PreferIncoming
	case "prompt":
		return PromptPerField
	default:
		return PreferCurrent
	}
}

// ProviderTimeouts converts the string-keyed YAML map into the
// ProviderTag-keyed map RegistryOptions expects.
func (c *Config) ProviderTimeouts() map[ProviderTag]time.Duration {
	out := make(map[ProviderTag]time.Duration, len(c.ProviderTimeout))
	for k, v := range c.ProviderTimeout {
		out[ProviderTag(k)] = v
	}
	return out
}
