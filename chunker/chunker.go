// Package chunker splits resume text into overlapping character windows
// for embedding. Resumes carry no reliable heading structure, so windows
// are positional rather than section-based.
package chunker

import "unicode/utf8"

// Config controls the chunking behaviour.
type Config struct {
	Size    int // Window size in characters.
	Overlap int // Characters shared between consecutive windows.
}

// Chunk is one window of the source text.
type Chunk struct {
	Index int    // 0-based position of this window.
	Start int    // Byte offset of the window in the source text.
	Text  string // Window content, Overlap characters shared with the previous one.
}

// Chunker produces overlapping windows over raw text.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.Size == 0 {
		cfg.Size = 1000
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = 200
	}
	if cfg.Overlap >= cfg.Size {
		cfg.Overlap = cfg.Size / 5
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits text into contiguous overlapping windows. Each window
// starts Size-Overlap characters after the previous one; the last window
// may be shorter. Window edges are cut back to rune boundaries so
// multi-byte characters are never split, which can shrink a window or
// its overlap by a few bytes. Empty text yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	if text == "" {
		return nil
	}

	step := c.cfg.Size - c.cfg.Overlap
	var chunks []Chunk
	for start, idx := 0, 0; start < len(text); idx++ {
		end := start + c.cfg.Size
		if end > len(text) {
			end = len(text)
		}
		end = runeStart(text, end)
		if end <= start {
			_, w := utf8.DecodeRuneInString(text[start:])
			end = start + w
		}
		chunks = append(chunks, Chunk{
			Index: idx,
			Start: start,
			Text:  text[start:end],
		})
		if end == len(text) {
			break
		}
		next := runeStart(text, start+step)
		if next <= start {
			_, w := utf8.DecodeRuneInString(text[start:])
			next = start + w
		}
		start = next
	}
	return chunks
}

// runeStart cuts a byte offset back to the nearest rune boundary at or
// before it.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// Reassemble concatenates chunks with their overlap stripped using the
// recorded start offsets, recovering the original text. Used by tests to
// assert the contiguity invariant.
func Reassemble(chunks []Chunk) string {
	var out []byte
	end := 0
	for _, c := range chunks {
		t := c.Text
		if c.Start < end {
			t = t[end-c.Start:]
		}
		out = append(out, t...)
		end = c.Start + len(c.Text)
	}
	return string(out)
}
