package tokenizer

import (
	"errors"

	"github.com/NikolayBobovnikov/context-manager/internal/utils"
)

// CountResult captures the outcome of counting one byte slice. Binary data is
// skipped rather than failed: Counted reports whether Tokens is meaningful.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for the provided data using counter.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errors.New("nil tokenizer counter")
	}
	if utils.IsBinary(data) {
		return CountResult{Counted: false}, nil
	}
	tokens, countError := counter.CountString(string(data))
	if countError != nil {
		return CountResult{}, countError
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}
