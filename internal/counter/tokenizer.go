package counter

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer turns text into a token count. Implementations may fail on
// input they cannot encode; each call is isolated per file.
type Tokenizer interface {
	Count(text string) (int, error)
}

// DefaultModel selects the cl100k_base encoding.
const DefaultModel = "gpt-3.5-turbo"

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves the encoding for the given model name.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	if model == "" {
		model = DefaultModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer for model %q: %w", model, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Count implements Tokenizer.
func (t *TiktokenTokenizer) Count(text string) (int, error) {
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("text is not valid UTF-8")
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}
