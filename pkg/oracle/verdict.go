package oracle

import (
	"mythforge/pkg/utils"
	"mythforge/pkg/vocabulary"
)

type Verdict int

const (
	Valid Verdict = iota + 1
	InvalidLabel
	Inconsistent
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case InvalidLabel:
		return "invalid_label"
	case Inconsistent:
		return "inconsistent"
	}
	return "none"
}

// Validator judges a parsed pair against the vocabulary.
type Validator interface {
	Validate(res ParseResult) Verdict
}

// RegistryValidator checks exact registry membership of the label and a
// case-insensitive mention of the label in the narrative. The mention check is a
// plain substring test: a tale that only uses epithets or pronouns is Inconsistent.
type RegistryValidator struct {
	Registry *vocabulary.Registry
}

func (v RegistryValidator) Validate(res ParseResult) Verdict {
	if !res.HasLabel || !v.Registry.Contains(res.Label) {
		return InvalidLabel
	}
	if !utils.StringContains(res.Narrative, false, res.Label) {
		return Inconsistent
	}
	return Valid
}
