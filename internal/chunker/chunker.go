// Package chunker splits document text into bounded, overlapping chunks.
//
// The splitter works through an ordered separator cascade from most to least
// structural: level-2 markdown headers, level-3 headers, paragraph breaks,
// single newlines, spaces, and finally fixed-width cuts. Text is split on
// the first separator that occurs, pieces are merged greedily up to the
// chunk size, and pieces still too large recurse onto the next separator.
package chunker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig indicates invalid splitter configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// defaultSeparators is the cascade applied in order. The empty string is the
// terminal level: fixed-width cuts with overlap.
var defaultSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", " ", ""}

// Splitter splits text into chunks of at most chunkSize bytes, with
// consecutive chunks overlapping by up to chunkOverlap bytes. A Splitter is
// stateless: Split is deterministic and safe for concurrent use.
//
// Sizes are measured in bytes. Documents are expected to be UTF-8 markdown;
// the terminal fixed-width cut can land inside a multi-byte rune, which is
// acceptable for embedding input.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// New creates a Splitter. chunkSize must be positive and chunkOverlap must
// be non-negative and strictly smaller than chunkSize.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must be non-negative, got %d", ErrInvalidConfig, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, chunkOverlap, chunkSize)
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}, nil
}

// Split splits text into ordered chunks. Empty input yields zero chunks.
func (s *Splitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

// split recursively applies the separator cascade to text.
func (s *Splitter) split(text string, seps []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if len(seps) == 0 || seps[0] == "" {
		return s.hardSplit(text)
	}

	parts := splitKeep(text, seps[0])
	if len(parts) == 1 {
		// Separator not present at this level, try the next one.
		return s.split(text, seps[1:])
	}
	return s.merge(parts, seps[1:])
}

// merge greedily packs parts into chunks of at most chunkSize bytes. When a
// chunk is closed, the next chunk starts with the tail of the previous one
// (up to chunkOverlap bytes) when that still fits. Parts that are themselves
// too large recurse onto the remaining separators; no overlap is carried
// across such a structural cut.
func (s *Splitter) merge(parts []string, seps []string) []string {
	var out []string
	var cur string

	for _, p := range parts {
		if len(p) > s.chunkSize {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			out = append(out, s.split(p, seps)...)
			continue
		}
		if cur != "" && len(cur)+len(p) > s.chunkSize {
			tail := s.overlapTail(cur)
			if len(tail)+len(p) > s.chunkSize {
				tail = ""
			}
			out = append(out, cur)
			cur = tail + p
			continue
		}
		cur += p
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// hardSplit cuts text into fixed-width chunks advancing by
// chunkSize-chunkOverlap bytes, so consecutive chunks share exactly
// chunkOverlap bytes.
func (s *Splitter) hardSplit(text string) []string {
	step := s.chunkSize - s.chunkOverlap
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}

// overlapTail returns the trailing overlap window of a closed chunk.
func (s *Splitter) overlapTail(chunk string) string {
	if s.chunkOverlap == 0 {
		return ""
	}
	if len(chunk) <= s.chunkOverlap {
		return chunk
	}
	return chunk[len(chunk)-s.chunkOverlap:]
}

// splitKeep splits text on sep, keeping the separator attached to the start
// of the following part so that concatenating the parts reproduces text and
// headers lead the chunk they title.
func splitKeep(text, sep string) []string {
	segs := strings.Split(text, sep)
	out := make([]string, 0, len(segs))
	out = append(out, segs[0])
	for _, seg := range segs[1:] {
		out = append(out, sep+seg)
	}
	return out
}
