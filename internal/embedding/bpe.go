package embedding

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// clipPattern splits lowercased text the way the CLIP tokenizer does before BPE.
var clipPattern = regexp.MustCompile(`<\|startoftext\|>|<\|endoftext\|>|'s|'t|'re|'ve|'m|'ll|'d|\p{L}+|\p{N}|[^\s\p{L}\p{N}]+`)

// BPETokenizer is the byte-level BPE tokenizer used by CLIP text encoders.
// Vocabulary and merges come from the model's vocab.json and merges.txt.
type BPETokenizer struct {
	encoder     map[string]int64
	ranks       map[[2]string]int
	byteEncoder [256]rune

	mu    sync.Mutex
	cache map[string][]string
}

// LoadBPETokenizer reads vocab.json and merges.txt.
func LoadBPETokenizer(vocabPath, mergesPath string) (*BPETokenizer, error) {
	data, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	var vocab map[string]int64
	if err := json.Unmarshal(data, &vocab); err != nil {
		return nil, fmt.Errorf("failed to parse vocab: %w", err)
	}

	f, err := os.Open(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read merges: %w", err)
	}
	defer f.Close()
	var merges [][2]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		merges = append(merges, [2]string{parts[0], parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read merges: %w", err)
	}
	return NewBPETokenizer(vocab, merges), nil
}

// NewBPETokenizer builds a tokenizer from an in-memory vocabulary and ordered merge list.
func NewBPETokenizer(vocab map[string]int64, merges [][2]string) *BPETokenizer {
	ranks := make(map[[2]string]int, len(merges))
	for i, m := range merges {
		ranks[m] = i
	}
	return &BPETokenizer{
		encoder:     vocab,
		ranks:       ranks,
		byteEncoder: bytesToUnicode(),
		cache:       make(map[string][]string),
	}
}

// bytesToUnicode maps every byte to a printable rune, as in GPT-2/CLIP byte-level BPE.
func bytesToUnicode() [256]rune {
	var out [256]rune
	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}
	n := 0
	for b := 0; b < 256; b++ {
		if printable(b) {
			out[b] = rune(b)
		} else {
			out[b] = rune(256 + n)
			n++
		}
	}
	return out
}

// Encode tokenizes text into CLIP input IDs and an attention mask of length contextLength.
// Pieces missing from the vocabulary are dropped.
func (t *BPETokenizer) Encode(text string, contextLength int) (inputIDs, attentionMask []int64) {
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	var ids []int64
	for _, token := range clipPattern.FindAllString(text, -1) {
		if id, ok := t.encoder[token]; ok && strings.HasPrefix(token, "<|") {
			ids = append(ids, id)
			continue
		}
		var b strings.Builder
		for _, c := range []byte(token) {
			b.WriteRune(t.byteEncoder[c])
		}
		for _, piece := range t.bpe(b.String()) {
			if id, ok := t.encoder[piece]; ok {
				ids = append(ids, id)
			}
		}
	}
	return frame(ids, contextLength)
}

// bpe merges the characters of token by lowest merge rank until no known pair remains.
// The last symbol carries the "</w>" end-of-word marker.
func (t *BPETokenizer) bpe(token string) []string {
	t.mu.Lock()
	if cached, ok := t.cache[token]; ok {
		t.mu.Unlock()
		return cached
	}
	t.mu.Unlock()

	runes := []rune(token)
	if len(runes) == 0 {
		return nil
	}
	word := make([]string, len(runes))
	for i, r := range runes {
		word[i] = string(r)
	}
	word[len(word)-1] += "</w>"

	for len(word) > 1 {
		best := math.MaxInt
		var pair [2]string
		for i := 0; i < len(word)-1; i++ {
			if r, ok := t.ranks[[2]string{word[i], word[i+1]}]; ok && r < best {
				best = r
				pair = [2]string{word[i], word[i+1]}
			}
		}
		if best == math.MaxInt {
			break
		}
		merged := make([]string, 0, len(word))
		for i := 0; i < len(word); i++ {
			if i < len(word)-1 && word[i] == pair[0] && word[i+1] == pair[1] {
				merged = append(merged, pair[0]+pair[1])
				i++
				continue
			}
			merged = append(merged, word[i])
		}
		word = merged
	}

	t.mu.Lock()
	t.cache[token] = word
	t.mu.Unlock()
	return word
}
