package llm

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports how many tokens a text costs under a model's
// tokenizer.
type TokenCounter interface {
	Count(text string) (int64, error)
}

// modelEncodings maps model names to their tiktoken encoding.
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// TiktokenCounter counts tokens with the model's real tiktoken encoding.
// The encoding is initialized lazily because it may download data on first
// use.
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

// NewTiktokenCounter creates a counter for model. Unknown models match by
// prefix and otherwise fall back to cl100k_base.
func NewTiktokenCounter(model string) *TiktokenCounter {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, enc := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				encoding = enc
				ok = true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

func (t *TiktokenCounter) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// Count implements TokenCounter.
func (t *TiktokenCounter) Count(text string) (int64, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return int64(len(t.enc.Encode(text, nil, nil))), nil
}

// EstimatorCounter is a character-based token estimator used when the real
// encoding is unavailable (offline environments, non-OpenAI models). CJK
// text runs denser than ASCII, so the two are weighted separately.
type EstimatorCounter struct{}

// Count implements TokenCounter.
func (EstimatorCounter) Count(text string) (int64, error) {
	if text == "" {
		return 0, nil
	}
	total := utf8.RuneCountInString(text)
	cjk := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		}
	}
	// CJK ~1.5 chars/token, ASCII ~4 chars/token.
	estimated := int64(float64(cjk)/1.5 + float64(total-cjk)/4.0)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func isCJK(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF: // CJK unified ideographs
		return true
	case r >= 0x3040 && r <= 0x30FF: // hiragana, katakana
		return true
	case r >= 0xAC00 && r <= 0xD7AF: // hangul syllables
		return true
	}
	return false
}

// fallbackCounter tries the real encoding first and estimates when it is
// unavailable.
type fallbackCounter struct {
	primary  TokenCounter
	fallback TokenCounter
}

// NewCounter returns the token counter for model: tiktoken-backed with a
// character-based estimator fallback.
func NewCounter(model string) TokenCounter {
	return &fallbackCounter{
		primary:  NewTiktokenCounter(model),
		fallback: EstimatorCounter{},
	}
}

func (c *fallbackCounter) Count(text string) (int64, error) {
	n, err := c.primary.Count(text)
	if err != nil {
		return c.fallback.Count(text)
	}
	return n, nil
}
