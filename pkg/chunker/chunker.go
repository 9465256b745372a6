// Package chunker splits documents into overlapping, size-bounded chunks.
//
// Splitting is recursive: the coarsest separator present in the text is used
// first, and only pieces that are still too long are split again with finer
// separators. Sizes are counted in runes.
package chunker

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/papercomputeco/docqa/pkg/document"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// DefaultSeparators in priority order. The empty separator cuts between runes.
var DefaultSeparators = []string{
	"\n\n",
	"\n",
	". ", "! ", "? ",
	"。", "！", "？",
	" ",
	"",
}

// namespace for deterministic chunk IDs.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/papercomputeco/docqa/chunk"))

// Chunk is a contiguous span of a document's text.
type Chunk struct {
	// ID is derived from the source, page and Index, so re-ingesting the same
	// corpus yields the same IDs.
	ID string

	Text     string
	Metadata document.Metadata

	// Index is the chunk's position within its document.
	Index int

	// Embedding is set once during ingestion.
	Embedding []float32
}

// Config holds the splitter parameters.
type Config struct {
	Size    int
	Overlap int

	// Separators overrides DefaultSeparators.
	Separators []string
}

// Splitter splits documents into chunks.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New validates c and creates a Splitter.
func New(c Config) (*Splitter, error) {
	if c.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive, got %d", ErrInvalidConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, c.Overlap, c.Size)
	}

	seps := c.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}

	return &Splitter{size: c.Size, overlap: c.Overlap, separators: seps}, nil
}

// Split chunks a single document. Every chunk inherits the document's
// metadata.
func (s *Splitter) Split(doc document.Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptyInput, doc.Metadata.Source)
	}

	texts := s.SplitText(doc.Text)
	chunks := make([]Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, Chunk{
			ID:       ChunkID(doc.Metadata, i),
			Text:     t,
			Metadata: doc.Metadata,
			Index:    i,
		})
	}

	return chunks, nil
}

// SplitText returns the trimmed, non-empty chunk texts of text.
func (s *Splitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var finer []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			finer = separators[i+1:]
			break
		}
	}

	var (
		out  []string
		good []string
	)
	for _, piece := range splitKeep(text, sep) {
		if runeLen(piece) <= s.size {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(finer) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				out = append(out, t)
			}
			continue
		}
		out = append(out, s.split(piece, finer)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}

	return out
}

// merge packs pieces into chunks of at most size runes. Each new chunk starts
// with the trailing pieces of the previous one, up to overlap runes.
func (s *Splitter) merge(pieces []string) []string {
	var (
		out     []string
		current []string
		total   int
	)

	emit := func() {
		if t := strings.TrimSpace(strings.Join(current, "")); t != "" {
			out = append(out, t)
		}
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.size && len(current) > 0 {
			emit()
			for total > s.overlap || (total+n > s.size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		emit()
	}

	return out
}

// splitKeep splits text after every occurrence of sep, leaving sep attached
// to the end of the piece it terminates. An empty sep splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	var pieces []string
	for text != "" {
		i := strings.Index(text, sep)
		if i < 0 {
			pieces = append(pieces, text)
			break
		}
		end := i + len(sep)
		pieces = append(pieces, text[:end])
		text = text[end:]
	}
	return pieces
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// ChunkID derives the stable identifier of the index-th chunk of a document.
func ChunkID(meta document.Metadata, index int) string {
	page := ""
	if meta.Page != nil {
		page = strconv.Itoa(*meta.Page)
	}
	key := meta.Source + "|" + page + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(namespace, []byte(key)).String()
}
