package embedding

import "strings"

// CLIP special tokens.
const (
	StartOfText int64 = 49406
	EndOfText   int64 = 49407
)

// Tokenizer produces CLIP text-encoder inputs: token IDs framed by start/end tokens and
// padded to contextLength, plus the matching attention mask.
type Tokenizer interface {
	Encode(text string, contextLength int) (inputIDs, attentionMask []int64)
}

// HashTokenizer is a word-split tokenizer with hash-based token IDs (for testing or when no
// BPE vocabulary is configured).
type HashTokenizer struct{}

// Encode splits text into lowercase words and produces padded token IDs up to contextLength.
func (t *HashTokenizer) Encode(text string, contextLength int) (inputIDs, attentionMask []int64) {
	words := SplitWords(strings.ToLower(text))
	ids := make([]int64, 0, len(words))
	for _, word := range words {
		ids = append(ids, int64(HashString(word)%int(StartOfText)))
	}
	return frame(ids, contextLength)
}

// frame wraps ids in start/end tokens, truncating so the end token always fits, and pads with zeros.
func frame(ids []int64, contextLength int) (inputIDs, attentionMask []int64) {
	if contextLength < 2 {
		contextLength = 77
	}
	if len(ids) > contextLength-2 {
		ids = ids[:contextLength-2]
	}
	inputIDs = make([]int64, contextLength)
	attentionMask = make([]int64, contextLength)
	inputIDs[0] = StartOfText
	attentionMask[0] = 1
	pos := 1
	for _, id := range ids {
		inputIDs[pos] = id
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = EndOfText
	attentionMask[pos] = 1
	return inputIDs, attentionMask
}

// SplitWords splits text on whitespace and returns non-empty words.
func SplitWords(text string) []string {
	return strings.Fields(text)
}

// HashString returns a deterministic non-negative hash for use as a simple token ID.
func HashString(s string) int {
	h := 0
	for _, c := range s {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	if h < 0 {
		// -MinInt overflows back to MinInt
		h = 0
	}
	return h
}
