package oracle

import (
	"regexp"
	"strings"
)

// ParseResult is what could be recovered from one raw generation.
// HasLabel is false when no label header (or an empty one) was found; Label is then "".
// When HasNarrative is false, Narrative holds the whole raw text.
type ParseResult struct {
	Label        string
	HasLabel     bool
	Narrative    string
	HasNarrative bool
}

// Parser extracts a (label, narrative) pair from raw model output.
type Parser interface {
	Parse(raw string) ParseResult
}

// TextParser implements the two-section text contract with tolerant line matching.
type TextParser struct{}

var (
	// The label header may follow a same-line preamble ("Here you go. Name of Greek/Goddess: ...").
	labelRX     = regexp.MustCompile(`(?im)` + regexp.QuoteMeta(LabelHeader) + `[ \t*_]*:[ \t]*(.*)$`)
	narrativeRX = regexp.MustCompile(`(?im)^[\s"'“*#>_]*` + NarrativeHeader + `[\s*_]*:[*_]*`)
)

const labelCutset = " \t\r\"'“”‘’*_`."

func (TextParser) Parse(raw string) ParseResult {
	var res ParseResult

	if m := labelRX.FindStringSubmatch(raw); m != nil {
		label := strings.Trim(strings.TrimSpace(m[1]), labelCutset)
		if label != "" {
			res.Label = label
			res.HasLabel = true
		}
	}

	if loc := narrativeRX.FindStringIndex(raw); loc != nil {
		if body := trimFences(raw[loc[1]:]); body != "" {
			res.Narrative = body
			res.HasNarrative = true
		}
	}
	if !res.HasNarrative {
		res.Narrative = trimFences(raw)
	}

	return res
}

// trimFences trims whitespace and drops a leading or trailing markdown code fence line.
func trimFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 && strings.HasPrefix(strings.TrimSpace(s[i+1:]), "```") {
		s = strings.TrimSpace(s[:i])
	}
	if strings.HasPrefix(s, "```") {
		_, rest, _ := strings.Cut(s, "\n")
		s = strings.TrimSpace(rest)
	}
	return s
}
