package retrieval

import (
	"strings"
	"unicode"

	"github.com/siherrmann/roofrag/core/pipeline"
)

// Topic is the coarse bucket a user message is routed to
type Topic string

const (
	TopicRoofing Topic = "roofing"
	TopicMeta    Topic = "meta"
	TopicGeneral Topic = "general"
)

// RouterTable holds the keyword lists scored by ClassifyTopic
type RouterTable struct {
	Roofing []string
	Meta    []string
}

// DefaultRouterTable returns the roofing and about-the-assistant keyword lists.
func DefaultRouterTable() RouterTable {
	return RouterTable{
		Roofing: []string{
			"roof", "shingle", "leak", "gutter", "hail", "storm", "wind", "metal", "tile", "slate",
			"flashing", "attic", "ventilation", "chimney", "skylight", "ice dam", "membrane",
			"estimate", "quote", "repair", "replace", "install", "inspection", "damage",
			"insurance", "warranty", "contractor", "tarp", "emergency",
		},
		Meta: []string{
			"who are you", "what are you", "your name", "are you a bot", "are you human",
			"are you real", "chatbot", "assistant", "ai", "bot", "how do you work",
			"what can you do", "who made you", "who built you",
		},
	}
}

// ClassifyTopic routes a message to the bucket with more keyword matches.
// Roofing keywords match word prefixes, meta keywords only whole words.
// Ties, including no matches at all, go to roofing. Messages without any
// letter or digit are general.
func ClassifyTopic(message string, table RouterTable) Topic {
	if strings.IndexFunc(message, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return TopicGeneral
	}

	roofing := pipeline.CountKeywords(message, table.Roofing)
	meta := pipeline.CountWords(message, table.Meta)
	if meta > roofing {
		return TopicMeta
	}
	return TopicRoofing
}
