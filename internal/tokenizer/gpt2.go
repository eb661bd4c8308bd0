// Package tokenizer turns GPT-2 token ids back into text.
//
// Only decoding is implemented: captioning feeds the decoder its start token
// and reads generated ids, so BPE merges are never needed.
package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// Decoder maps token ids to text using a GPT-2 style vocab.json.
type Decoder struct {
	tokens  map[int64]string
	special map[int64]bool
	byteOf  map[rune]byte
}

// LoadVocab reads a vocab.json file ({"token": id, ...}).
func LoadVocab(path string) (*Decoder, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vocab map[string]int64
	if err := json.Unmarshal(b, &vocab); err != nil {
		return nil, fmt.Errorf("parse vocab %s: %w", path, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return NewDecoder(vocab), nil
}

// NewDecoder builds a Decoder from an in-memory vocabulary.
// Tokens of the form <|...|> are treated as special.
func NewDecoder(vocab map[string]int64) *Decoder {
	d := &Decoder{
		tokens:  make(map[int64]string, len(vocab)),
		special: make(map[int64]bool),
		byteOf:  byteDecoder(),
	}
	for tok, id := range vocab {
		d.tokens[id] = tok
		if strings.HasPrefix(tok, "<|") && strings.HasSuffix(tok, "|>") {
			d.special[id] = true
		}
	}
	return d
}

// Size returns the number of known tokens.
func (d *Decoder) Size() int { return len(d.tokens) }

// IsSpecial reports whether id is a special token such as <|endoftext|>.
func (d *Decoder) IsSpecial(id int64) bool { return d.special[id] }

// Decode converts ids to text. Unknown ids are dropped; special tokens are
// dropped when skipSpecial is set. Invalid UTF-8 is replaced with U+FFFD.
func (d *Decoder) Decode(ids []int64, skipSpecial bool) string {
	var buf []byte
	for _, id := range ids {
		tok, ok := d.tokens[id]
		if !ok {
			continue
		}
		if skipSpecial && d.special[id] {
			continue
		}
		if d.special[id] {
			buf = append(buf, tok...)
			continue
		}
		for _, r := range tok {
			if b, ok := d.byteOf[r]; ok {
				buf = append(buf, b)
			} else {
				buf = utf8.AppendRune(buf, r)
			}
		}
	}
	if !utf8.Valid(buf) {
		return strings.ToValidUTF8(string(buf), "�")
	}
	return string(buf)
}

// byteDecoder inverts GPT-2's bytes_to_unicode table: printable latin-1 bytes
// map to themselves, the remaining bytes are shifted to code points from 256.
func byteDecoder() map[rune]byte {
	direct := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}
	m := make(map[rune]byte, 256)
	n := 0
	for b := 0; b < 256; b++ {
		if direct(b) {
			m[rune(b)] = byte(b)
			continue
		}
		m[rune(256+n)] = byte(b)
		n++
	}
	return m
}
