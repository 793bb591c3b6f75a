package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/siherrmann/roofrag/model"
)

// Chunker splits documents into overlapping, token bounded chunks
// and tags them with the classifier.
type Chunker struct {
	config model.ChunkerConfig
	table  KeywordTable
}

type sentence struct {
	text    string
	heading string
}

// NewChunker creates a chunker for the given configuration and keyword table
func NewChunker(config model.ChunkerConfig, table KeywordTable) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker configuration: %w", err)
	}
	return &Chunker{config: config, table: table}, nil
}

// Config returns the chunker configuration
func (c *Chunker) Config() model.ChunkerConfig {
	return c.config
}

// Chunk splits a document into chunks. The output only depends on the
// document and the configuration.
func (c *Chunker) Chunk(doc *model.Document) ([]*model.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	sentences := documentSentences(doc.Content)
	if len(sentences) == 0 {
		return []*model.Chunk{}, nil
	}

	metadata := Classify(doc.Source, doc.Content, c.table)
	metadata.Source = doc.Source
	metadata = metadata.Merge(doc.Metadata)

	key := sourceKey(doc.Source)
	chunks := []*model.Chunk{}
	emit := func(parts []sentence, newStart int) {
		title := parts[newStart].heading
		if title == "" {
			title = doc.Title
		}
		if title == "" {
			title = model.DefaultTitle
		}

		content := joinSentences(parts)
		chunkMetadata := metadata
		chunkMetadata.Season = append([]model.Season(nil), metadata.Season...)
		chunkMetadata.ChunkIndex = len(chunks)
		chunkMetadata.ContentHash = contentHash(content)

		chunks = append(chunks, &model.Chunk{
			ID:       fmt.Sprintf("%s_%d", key, len(chunks)),
			Content:  content,
			Title:    title,
			Tokens:   model.EstimateTokens(content),
			Metadata: chunkMetadata,
		})
	}

	// buffer[:newStart] is carried over from the previous chunk.
	var buffer []sentence
	newStart := 0
	for _, s := range sentences {
		if model.EstimateTokens(s.text) > c.config.ChunkSize {
			if len(buffer) > newStart {
				emit(buffer, newStart)
			}
			emit([]sentence{s}, 0)
			buffer = nil
			newStart = 0
			continue
		}

		if len(buffer) > newStart && c.exceeds(buffer, newStart, s) {
			emit(buffer, newStart)
			buffer = c.fitOverlap(c.overlap(buffer[newStart:]), s)
			newStart = len(buffer)
		}
		buffer = append(buffer, s)
	}
	if len(buffer) > newStart {
		emit(buffer, newStart)
	}

	return chunks, nil
}

// exceeds reports whether appending s would push the new content past
// ChunkSize or the whole chunk past ChunkSize plus Overlap.
func (c *Chunker) exceeds(buffer []sentence, newStart int, s sentence) bool {
	withNext := append(append([]sentence(nil), buffer...), s)
	if model.EstimateTokens(joinSentences(withNext[newStart:])) > c.config.ChunkSize {
		return true
	}
	return model.EstimateTokens(joinSentences(withNext)) > c.config.ChunkSize+c.config.Overlap
}

// overlap returns the trailing sentences to carry into the next chunk.
// Up to OverlapSentences are taken as long as they fit into Overlap tokens.
func (c *Chunker) overlap(closed []sentence) []sentence {
	for n := min(c.config.OverlapSentences, len(closed)); n > 0; n-- {
		tail := closed[len(closed)-n:]
		if model.EstimateTokens(joinSentences(tail)) <= c.config.Overlap {
			return append([]sentence(nil), tail...)
		}
	}
	return nil
}

// fitOverlap drops the oldest carried sentences until the carried part
// joined with next stays within ChunkSize plus Overlap.
func (c *Chunker) fitOverlap(carried []sentence, next sentence) []sentence {
	for len(carried) > 0 {
		joined := append(append([]sentence(nil), carried...), next)
		if model.EstimateTokens(joinSentences(joined)) <= c.config.ChunkSize+c.config.Overlap {
			break
		}
		carried = carried[1:]
	}
	return carried
}

// documentSentences splits content into sentences. Markdown heading lines are
// not content, they become the heading of the sentences that follow them.
func documentSentences(content string) []sentence {
	var sentences []sentence
	var section []string
	heading := ""

	flush := func() {
		for _, text := range SplitSentences(strings.Join(section, " ")) {
			sentences = append(sentences, sentence{text: text, heading: heading})
		}
		section = section[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		section = append(section, trimmed)
	}
	flush()

	return sentences
}

// SplitSentences splits text after runs of '.', '!' or '?' that are followed
// by whitespace or the end of the text. Whitespace inside sentences is collapsed.
func SplitSentences(text string) []string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	sentences := []string{}
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && isTerminal(runes[end+1]) {
			end++
		}
		i = end
		if end+1 == len(runes) || unicode.IsSpace(runes[end+1]) {
			if s := strings.TrimSpace(string(runes[start : end+1])); s != "" {
				sentences = append(sentences, s)
			}
			start = end + 1
		}
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func joinSentences(sentences []sentence) string {
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.text
	}
	return strings.Join(texts, " ")
}

// sourceKey turns a document source into the id prefix of its chunks,
// e.g. "docs/Hail Guide.md" becomes "docs-hail-guide".
func sourceKey(source string) string {
	source = strings.TrimSuffix(source, path.Ext(source))
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(source) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteRune('-')
			dash = true
		}
	}
	key := strings.TrimSuffix(b.String(), "-")
	if key == "" {
		return "document"
	}
	return key
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
