package model

import (
	"math"
	"unicode/utf8"
)

// Category is the topic taxonomy of a chunk.
type Category string

const (
	CategoryMaterials    Category = "materials"
	CategoryClimate      Category = "climate"
	CategoryInstallation Category = "installation"
	CategoryMaintenance  Category = "maintenance"
	CategoryCommercial   Category = "commercial"
	CategoryEmergency    Category = "emergency"
	CategoryPricing      Category = "pricing"
	CategoryGeneral      Category = "general"
)

// Categories lists the full taxonomy.
var Categories = []Category{
	CategoryMaterials,
	CategoryClimate,
	CategoryInstallation,
	CategoryMaintenance,
	CategoryCommercial,
	CategoryEmergency,
	CategoryPricing,
	CategoryGeneral,
}

// Urgency ranks how time critical the content is.
type Urgency string

const (
	UrgencyEmergency     Urgency = "emergency"
	UrgencyHigh          Urgency = "high"
	UrgencyNormal        Urgency = "normal"
	UrgencyInformational Urgency = "informational"
)

// Urgencies lists the urgency levels from most to least urgent.
var Urgencies = []Urgency{UrgencyEmergency, UrgencyHigh, UrgencyNormal, UrgencyInformational}

type Season string

const (
	SeasonSpring    Season = "spring"
	SeasonSummer    Season = "summer"
	SeasonFall      Season = "fall"
	SeasonWinter    Season = "winter"
	SeasonYearRound Season = "year-round"
)

type ServiceType string

const (
	ServiceResidential ServiceType = "residential"
	ServiceCommercial  ServiceType = "commercial"
	ServiceBoth        ServiceType = "both"
)

type Complexity string

const (
	ComplexityBasic        Complexity = "basic"
	ComplexityIntermediate Complexity = "intermediate"
	ComplexityAdvanced     Complexity = "advanced"
)

// DefaultTitle is used for chunks without an enclosing heading or document title.
const DefaultTitle = "General Roofing Information"

// Chunk is the atomic retrievable unit produced by the chunker.
type Chunk struct {
	ID       string        `json:"id"`
	Content  string        `json:"content"`
	Title    string        `json:"title"`
	Tokens   int           `json:"tokens"`
	Metadata ChunkMetadata `json:"metadata"`
}

// EstimateTokens estimates the token count with four characters per token.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 4.0))
}

// IsCategory reports whether c is part of the taxonomy.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if string(known) == c {
			return true
		}
	}
	return false
}

// IsUrgency reports whether u is a known urgency level.
func IsUrgency(u string) bool {
	for _, known := range Urgencies {
		if string(known) == u {
			return true
		}
	}
	return false
}
