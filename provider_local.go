package autobib

// newLocalCapability builds the "local" provider: canonical, no remote
// source. Its sub-id validity is exactly alias validity (spec §4.3, §3
// invariant 7: "the sub-id of a local: identifier is a valid alias").
func newLocalCapability() *Capability {
	return &Capability{
		Tag:           ProviderLocal,
		Kind:          ProviderKindCanonical,
		SupportsFetch: false,
		validate: func(subID string) error {
			return ValidateAliasName(subID)
		},
	}
}
