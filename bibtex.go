package autobib

import "fmt"

// Render emits a record as a BibTeX entry: `@<entry_type>{<citation_key>,
// <key> = {<value>}, ... }`, fields sorted ascending by key, the storage
// order (spec §6). citeKey is the name used to reach the record: an
// alias if one resolved it, otherwise the canonical id.
func Render(data *EntryData, citeKey string) (string, error) {
	if !RenderableAsCiteKey(citeKey) {
		return "", newInputError("BadCitationKey", citeKey)
	}

	out := "@" + data.EntryType + "{" + citeKey
	for _, k := range data.sortedKeys() {
		out += fmt.Sprintf(",\n  %s = {%s}", k, data.Fields[k])
	}
	out += "\n}\n"
	return out, nil
}

// RenderRecord is a convenience wrapper over Render for an Outcome's
// record, using Outcome.CiteKey as the citation key.
func RenderRecord(o Outcome) (string, error) {
	if o.Kind != OutcomeEntry || o.Record == nil || o.Record.Data == nil {
		return "", newInputError("NotAnEntry", o.CiteKey)
	}
	return Render(o.Record.Data, o.CiteKey)
}
