package rag

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerErr  error
	defaultTokenizerOnce sync.Once
)

// Tokenizer counts and clips text in BPE tokens.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

func NewTokenizer(encoding string) (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// DefaultTokenizer loads cl100k_base once per process.
func DefaultTokenizer() (*Tokenizer, error) {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer, defaultTokenizerErr = NewTokenizer(DefaultEncoding)
	})
	return defaultTokenizer, defaultTokenizerErr
}

func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Clip returns the longest token prefix of text that fits maxTokens.
func (t *Tokenizer) Clip(text string, maxTokens int) string {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return t.enc.Decode(tokens[:maxTokens])
}

// WordCounter approximates tokens by whitespace separated words. It is the
// fallback when no BPE encoding can be loaded.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(strings.Fields(text))
}
