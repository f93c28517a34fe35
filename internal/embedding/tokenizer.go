package embedding

import (
	"fmt"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer produces token IDs for BERT-style models (input_ids, attention_mask, token_type_ids),
// each padded or truncated to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error)
}

// VocabTokenizer encodes text with the WordPiece vocabulary shipped with a model, read from
// a Hugging Face tokenizer.json.
type VocabTokenizer struct {
	tk *tokenizer.Tokenizer
}

// LoadTokenizer reads the tokenizer.json at path.
func LoadTokenizer(path string) (*VocabTokenizer, error) {
	if path == "" {
		return nil, fmt.Errorf("tokenizer path is required")
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &VocabTokenizer{tk: tk}, nil
}

// Tokenize encodes text with the special tokens of the model.
func (t *VocabTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	enc, err := t.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tokenize: %w", err)
	}
	inputIDs, attentionMask, tokenTypeIDs = fitEncoding(enc.Ids, enc.AttentionMask, enc.TypeIds, maxTokens)
	return inputIDs, attentionMask, tokenTypeIDs, nil
}

// fitEncoding copies an encoding into fixed-length tensors. Padding the tokenizer added
// is dropped. A sequence longer than maxTokens is cut and keeps its final token, the
// [SEP] marker, in the last slot.
func fitEncoding(ids, mask, types []int, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	n := len(ids)
	if len(mask) == n {
		for n > 0 && mask[n-1] == 0 {
			n--
		}
	}
	if n == 0 || maxTokens == 0 {
		return inputIDs, attentionMask, tokenTypeIDs
	}
	last := ids[n-1]
	if n > maxTokens {
		n = maxTokens
	}
	for i := 0; i < n; i++ {
		inputIDs[i] = int64(ids[i])
		attentionMask[i] = 1
		if i < len(types) {
			tokenTypeIDs[i] = int64(types[i])
		}
	}
	inputIDs[n-1] = int64(last)
	return inputIDs, attentionMask, tokenTypeIDs
}
