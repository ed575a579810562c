package autobib

import (
	"regexp"
	"strings"
)

// OnInsertConfig toggles the on_insert normalization hooks applied to a
// freshly fetched record before it is persisted (spec §4.3).
type OnInsertConfig struct {
	CollapseWhitespace  bool
	StripJournalSeries  bool
	SynthesizeEprint    bool
}

// stripJournalSeriesRE implements the open question of spec §9: strip a
// trailing "(N)" series marker such as the "(2)" in "Ann. Math. (2)".
var stripJournalSeriesRE = regexp.MustCompile(`\s*\(\d+\)\s*$`)

// applyOnInsertHooks runs the configured on_insert normalizations over
// every field of d, in a fixed order: whitespace collapse, then journal
// series stripping, then eprint synthesis.
func applyOnInsertHooks(d *EntryData, cfg OnInsertConfig) {
	if cfg.CollapseWhitespace {
		for k, v := range d.Fields {
			d.Fields[k] = collapseWhitespace(v)
		}
	}
	if cfg.StripJournalSeries {
		if journal, ok := d.Fields["journal"]; ok {
			d.Fields["journal"] = stripJournalSeriesRE.ReplaceAllString(journal, "")
		}
	}
	if cfg.SynthesizeEprint {
		synthesizeEprint(d)
	}
}

// synthesizeEprint derives eprint/eprinttype fields from an "arxiv"
// field, the biblatex convention for citing arXiv preprints. It sets no
// eprintclass field.
func synthesizeEprint(d *EntryData) {
	arxivID, ok := d.Fields["arxiv"]
	if !ok || arxivID == "" {
		return
	}
	if _, exists := d.Fields["eprint"]; exists {
		return
	}
	d.Fields["eprint"] = arxivID
	d.Fields["eprinttype"] = "arxiv"
}

// collapseWhitespace replaces runs of whitespace (including embedded
// newlines from wrapped XML/JSON text) with a single space and trims the
// result.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
