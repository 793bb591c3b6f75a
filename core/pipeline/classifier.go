package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/siherrmann/roofrag/model"
)

// Rule maps a label to the keywords that select it.
type Rule[L ~string] struct {
	Label    L
	Keywords []string
}

// KeywordTable holds every keyword list used by the classifier.
// Rules are evaluated in slice order and the first match wins.
type KeywordTable struct {
	Categories  []Rule[model.Category]
	Urgencies   []Rule[model.Urgency]
	Seasons     []Rule[model.Season]
	Commercial  []string
	Residential []string
	Locations   []string

	IntermediateLength int // Documents longer than this many characters are intermediate
	AdvancedLength     int // Documents longer than this many characters are advanced
}

// CategoryOrder is the tie-break order of DefaultKeywordTable.
// Content matching several categories gets the earliest one.
var CategoryOrder = []model.Category{
	model.CategoryEmergency,
	model.CategoryCommercial,
	model.CategoryPricing,
	model.CategoryClimate,
	model.CategoryMaterials,
	model.CategoryInstallation,
	model.CategoryMaintenance,
}

var categoryKeywords = map[model.Category][]string{
	model.CategoryEmergency:    {"emergency", "storm damage", "leak", "urgent", "tarp", "water damage"},
	model.CategoryCommercial:   {"commercial", "flat roof", "tpo", "epdm", "membrane", "warehouse", "business"},
	model.CategoryPricing:      {"price", "pricing", "cost", "estimate", "quote", "financing", "insurance claim"},
	model.CategoryClimate:      {"climate", "weather", "hail", "wind", "snow", "ice dam", "humidity"},
	model.CategoryMaterials:    {"material", "shingle", "metal roof", "tile", "slate", "asphalt", "underlayment"},
	model.CategoryInstallation: {"install", "replacement", "replace", "new roof", "tear-off", "tear off"},
	model.CategoryMaintenance:  {"maintenance", "inspection", "inspect", "gutter", "cleaning", "repair"},
}

// DefaultKeywordTable returns the keyword lists for roofing content.
func DefaultKeywordTable() KeywordTable {
	categories := make([]Rule[model.Category], 0, len(CategoryOrder))
	for _, category := range CategoryOrder {
		categories = append(categories, Rule[model.Category]{Label: category, Keywords: categoryKeywords[category]})
	}

	return KeywordTable{
		Categories: categories,
		Urgencies: []Rule[model.Urgency]{
			{Label: model.UrgencyEmergency, Keywords: []string{"emergency", "leak", "immediately", "urgent", "storm damage", "tarp", "asap", "right now", "flooding"}},
			{Label: model.UrgencyHigh, Keywords: []string{"damage", "missing shingles", "crack", "sagging", "mold", "rot", "soon"}},
			{Label: model.UrgencyNormal, Keywords: []string{"repair", "replace", "install", "estimate", "quote", "schedule"}},
			{Label: model.UrgencyInformational, Keywords: []string{"guide", "overview", "what is", "how to", "learn", "tips", "history"}},
		},
		Seasons: []Rule[model.Season]{
			{Label: model.SeasonSpring, Keywords: []string{"spring", "pollen", "rainy season"}},
			{Label: model.SeasonSummer, Keywords: []string{"summer", "heat", "uv", "hurricane"}},
			{Label: model.SeasonFall, Keywords: []string{"fall", "autumn", "leaves"}},
			{Label: model.SeasonWinter, Keywords: []string{"winter", "snow", "ice", "freeze", "freezing"}},
		},
		Commercial:         []string{"commercial", "business", "warehouse", "office", "flat roof", "tpo", "epdm"},
		Residential:        []string{"residential", "home", "house", "homeowner", "family"},
		IntermediateLength: 1000,
		AdvancedLength:     3000,
	}
}

// Classify tags a document from its filename and body.
func Classify(filename string, content string, table KeywordTable) model.ChunkMetadata {
	return model.ChunkMetadata{
		Category:    ClassifyCategory(filename, content, table),
		Urgency:     ClassifyUrgency(content, table),
		Season:      ClassifySeasons(content, table),
		ServiceType: ClassifyServiceType(content, table),
		Complexity:  ClassifyComplexity(content, table),
		Location:    ClassifyLocation(content, table),
	}
}

// ClassifyCategory checks the filename before the body; the first matching rule wins.
func ClassifyCategory(filename string, content string, table KeywordTable) model.Category {
	name := strings.NewReplacer("-", " ", "_", " ", ".", " ", "/", " ").Replace(strings.ToLower(filename))
	if category, ok := firstMatch(name, table.Categories); ok {
		return category
	}
	if category, ok := firstMatch(strings.ToLower(content), table.Categories); ok {
		return category
	}
	return model.CategoryGeneral
}

// ClassifyUrgency returns the label of the first urgency rule matching text, or normal.
func ClassifyUrgency(text string, table KeywordTable) model.Urgency {
	if urgency, ok := firstMatch(strings.ToLower(text), table.Urgencies); ok {
		return urgency
	}
	return model.UrgencyNormal
}

// ClassifySeasons returns every season mentioned in text, or year-round.
func ClassifySeasons(text string, table KeywordTable) []model.Season {
	lower := strings.ToLower(text)
	seasons := []model.Season{}
	for _, rule := range table.Seasons {
		if matchesAny(lower, rule.Keywords) {
			seasons = append(seasons, rule.Label)
		}
	}
	if len(seasons) == 0 {
		return []model.Season{model.SeasonYearRound}
	}
	return seasons
}

func ClassifyServiceType(text string, table KeywordTable) model.ServiceType {
	lower := strings.ToLower(text)
	commercial := matchesAny(lower, table.Commercial)
	residential := matchesAny(lower, table.Residential)
	switch {
	case commercial && !residential:
		return model.ServiceCommercial
	case residential && !commercial:
		return model.ServiceResidential
	default:
		return model.ServiceBoth
	}
}

func ClassifyComplexity(content string, table KeywordTable) model.Complexity {
	length := utf8.RuneCountInString(content)
	switch {
	case table.AdvancedLength > 0 && length > table.AdvancedLength:
		return model.ComplexityAdvanced
	case table.IntermediateLength > 0 && length > table.IntermediateLength:
		return model.ComplexityIntermediate
	default:
		return model.ComplexityBasic
	}
}

// ClassifyLocation returns the first configured location named in text.
func ClassifyLocation(text string, table KeywordTable) string {
	lower := strings.ToLower(text)
	for _, location := range table.Locations {
		if containsKeyword(lower, strings.ToLower(location)) {
			return location
		}
	}
	return ""
}

// CountKeywords returns how many of the keywords occur in text.
func CountKeywords(text string, keywords []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, keyword := range keywords {
		if containsKeyword(lower, strings.ToLower(keyword)) {
			count++
		}
	}
	return count
}

func firstMatch[L ~string](lower string, rules []Rule[L]) (L, bool) {
	for _, rule := range rules {
		if matchesAny(lower, rule.Keywords) {
			return rule.Label, true
		}
	}
	var zero L
	return zero, false
}

func matchesAny(lower string, keywords []string) bool {
	for _, keyword := range keywords {
		if containsKeyword(lower, keyword) {
			return true
		}
	}
	return false
}

// CountWords is CountKeywords restricted to whole words, so "bot" does not
// match "bottom".
func CountWords(text string, keywords []string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, keyword := range keywords {
		if matchKeyword(lower, strings.ToLower(keyword), true) {
			count++
		}
	}
	return count
}

// containsKeyword reports whether keyword occurs at the start of a word in text,
// so "leak" matches "leaking" but "tar" does not match "start".
func containsKeyword(text string, keyword string) bool {
	return matchKeyword(text, keyword, false)
}

func matchKeyword(text string, keyword string, wholeWord bool) bool {
	if keyword == "" {
		return false
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], keyword)
		if i < 0 {
			return false
		}
		pos := offset + i
		end := pos + len(keyword)
		if isBoundary(text[:pos], true) && (!wholeWord || isBoundary(text[end:], false)) {
			return true
		}
		offset = end
	}
}

// isBoundary reports whether the rune next to a match, the last rune of
// before or the first rune of after, is not part of a word.
func isBoundary(s string, before bool) bool {
	if s == "" {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(s)
	} else {
		r, _ = utf8.DecodeRuneInString(s)
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
