package utils

import (
	"github.com/pkoukk/tiktoken-go"
)

// PromptTokens estimates the token cost of parts for model. Models tiktoken does not know
// fall back to cl100k_base. Encoding tables are fetched on first use, so an error means "unknown".
func PromptTokens(model string, parts ...string) (int, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
		if err != nil {
			return 0, err
		}
	}

	var n int
	for _, p := range parts {
		n += len(enc.Encode(p, nil, nil))
	}
	return n, nil
}
