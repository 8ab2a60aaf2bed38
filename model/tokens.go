package model

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports how many model tokens a text occupies. The query
// pipeline uses it to keep the assembled context inside a budget.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with the BPE encoding of a chat model.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
