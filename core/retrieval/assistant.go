package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/siherrmann/roofrag/core/pipeline"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/metrics"
	"github.com/siherrmann/roofrag/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// QueryEmbedder embeds a user message. pipeline.Generator implements it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// AssistantConfig represents configuration for answering user messages
type AssistantConfig struct {
	Search           model.SearchOptions
	HistoryMessages  int    // Messages kept per session, 0 disables history
	MaxSessions      int    // Sessions kept in memory
	MaxMessageChars  int    // Longer messages are rejected
	CompanyName      string // Used in the prompts
	EmergencyContact string // Call to action for emergencies
	Keywords         pipeline.KeywordTable
	Router           RouterTable
}

// DefaultAssistantConfig returns a sensible default configuration
func DefaultAssistantConfig() AssistantConfig {
	return AssistantConfig{
		Search:           model.DefaultSearchOptions(),
		HistoryMessages:  10,
		MaxSessions:      1000,
		MaxMessageChars:  2000,
		CompanyName:      "our roofing team",
		EmergencyContact: "call our 24/7 emergency line",
		Keywords:         pipeline.DefaultKeywordTable(),
		Router:           DefaultRouterTable(),
	}
}

// NoMatchPrefix starts every response that is not backed by a knowledge source.
const NoMatchPrefix = "No specific match found in our roofing knowledge base."

// Assistant answers user messages grounded on knowledge search results.
type Assistant struct {
	engine    *Engine
	embedder  QueryEmbedder
	completer Completer
	config    AssistantConfig
	sessions  *SessionStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewAssistant creates an assistant. Without a completer the response is
// composed from the retrieved chunks directly.
func NewAssistant(engine *Engine, embedder QueryEmbedder, completer Completer, config AssistantConfig, logger *slog.Logger) (*Assistant, error) {
	if engine == nil {
		return nil, fmt.Errorf("retrieval engine is nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("query embedder is nil")
	}
	if err := config.Search.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search options: %w", err)
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &Assistant{
		engine:    engine,
		embedder:  embedder,
		completer: completer,
		config:    config,
		sessions:  NewSessionStore(config.HistoryMessages, config.MaxSessions),
		logger:    logger,
	}, nil
}

// SetMetrics sets the metrics the assistant reports to
func (a *Assistant) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

// Sessions returns the session history store
func (a *Assistant) Sessions() *SessionStore {
	return a.sessions
}

// Answer routes the message, searches the knowledge base and composes the response.
func (a *Assistant) Answer(ctx context.Context, request model.QueryRequest) (*model.QueryResponse, error) {
	message := strings.TrimSpace(request.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is empty", model.ErrInvalidQuery)
	}
	if a.config.MaxMessageChars > 0 && utf8.RuneCountInString(message) > a.config.MaxMessageChars {
		return nil, fmt.Errorf("%w: message is longer than %d characters", model.ErrInvalidQuery, a.config.MaxMessageChars)
	}

	sessionID := request.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	topic := ClassifyTopic(message, a.config.Router)
	urgency := pipeline.ClassifyUrgency(message, a.config.Keywords)

	ctx, span := tracer.Start(ctx, "Assistant.Answer", trace.WithAttributes(
		attribute.String("query.topic", string(topic)),
		attribute.String("query.urgency", string(urgency)),
	))
	defer span.End()

	response := &model.QueryResponse{
		SessionID: sessionID,
		Metadata: model.QueryMetadata{
			RelevantSources: []model.SourceReference{},
			Topic:           string(topic),
			Urgency:         urgency,
		},
	}

	var results []*model.SearchResult
	if topic == TopicRoofing {
		var err error
		results, err = a.search(ctx, message, urgency)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	history := a.sessions.History(sessionID)
	switch {
	case topic == TopicRoofing && len(results) == 0:
		response.Response = a.noMatchResponse(urgency)
		response.Metadata.Fallback = true
	case topic == TopicRoofing:
		response.Response = a.groundedResponse(ctx, message, urgency, results, history)
	default:
		response.Response = a.smallTalkResponse(ctx, topic, message, history)
	}

	var similaritySum float64
	for _, result := range results {
		similaritySum += result.Similarity
		response.Metadata.RelevantSources = append(response.Metadata.RelevantSources, model.SourceReference{
			Title:      result.Record.Title,
			Category:   result.Record.Metadata.Category,
			Similarity: result.Similarity,
		})
	}
	response.Metadata.SourcesUsed = len(results)
	if len(results) > 0 {
		response.Metadata.SearchQuality = similaritySum / float64(len(results))
	}

	a.sessions.Append(sessionID,
		Message{Role: RoleUser, Content: message},
		Message{Role: RoleAssistant, Content: response.Response},
	)
	a.metrics.ObserveQuery(string(topic), response.Metadata.Fallback)
	span.SetAttributes(attribute.Int("query.sources", len(results)))

	a.logger.Info("Answered query",
		"session_id", sessionID,
		"topic", topic,
		"urgency", urgency,
		"sources", len(results),
		"fallback", response.Metadata.Fallback,
	)
	return response, nil
}

// search embeds the message and searches. Emergency messages look at
// emergency chunks first and fall back to the whole knowledge base.
func (a *Assistant) search(ctx context.Context, message string, urgency model.Urgency) ([]*model.SearchResult, error) {
	embedding, err := a.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return nil, helper.NewError("embed message", err)
	}

	options := a.config.Search
	if urgency == model.UrgencyEmergency && options.FilterUrgency == "" {
		filtered := options
		filtered.FilterUrgency = string(model.UrgencyEmergency)
		results, err := a.engine.Search(ctx, embedding, filtered)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results, nil
		}
	}

	return a.engine.Search(ctx, embedding, options)
}

func (a *Assistant) groundedResponse(ctx context.Context, message string, urgency model.Urgency, results []*model.SearchResult, history []Message) string {
	if a.completer != nil {
		messages := []Message{{Role: RoleSystem, Content: a.SystemPrompt(TopicRoofing, urgency, results)}}
		messages = append(messages, history...)
		messages = append(messages, Message{Role: RoleUser, Content: message})

		reply, err := a.completer.Complete(ctx, messages)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		if err == nil {
			err = errors.New("empty completion")
		}
		a.logger.Warn("Completion failed, composing from sources", "error", err)
	}
	return a.composeFromSources(urgency, results)
}

func (a *Assistant) smallTalkResponse(ctx context.Context, topic Topic, message string, history []Message) string {
	if a.completer != nil {
		messages := []Message{{Role: RoleSystem, Content: a.SystemPrompt(topic, model.UrgencyNormal, nil)}}
		messages = append(messages, history...)
		messages = append(messages, Message{Role: RoleUser, Content: message})

		reply, err := a.completer.Complete(ctx, messages)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		a.logger.Warn("Completion failed, using canned reply", "topic", topic, "error", err)
	}

	if topic == TopicMeta {
		return fmt.Sprintf("I'm the virtual assistant of %s. I answer questions about roofing materials, repairs, maintenance, storm damage and estimates using our knowledge base.", a.config.CompanyName)
	}
	return "How can I help with your roof today? You can ask about repairs, materials, maintenance or storm damage."
}

func (a *Assistant) noMatchResponse(urgency model.Urgency) string {
	var b strings.Builder
	b.WriteString(NoMatchPrefix)
	b.WriteString(" I don't want to guess, so please contact ")
	b.WriteString(a.config.CompanyName)
	b.WriteString(" for a free inspection and an answer specific to your roof.")
	if urgency == model.UrgencyEmergency {
		fmt.Fprintf(&b, "\n\nThis sounds urgent: %s.", a.config.EmergencyContact)
	}
	return b.String()
}

// composeFromSources builds an extractive answer from the top results.
func (a *Assistant) composeFromSources(urgency model.Urgency, results []*model.SearchResult) string {
	var b strings.Builder
	if urgency == model.UrgencyEmergency {
		fmt.Fprintf(&b, "This sounds urgent: %s.\n\n", a.config.EmergencyContact)
	}
	b.WriteString("Here is what our knowledge base says:\n")
	for i, result := range results {
		if i == 3 {
			break
		}
		sentences := pipeline.SplitSentences(result.Record.Content)
		if len(sentences) > 2 {
			sentences = sentences[:2]
		}
		fmt.Fprintf(&b, "\n- %s: %s", result.Record.Title, strings.Join(sentences, " "))
	}
	return b.String()
}

// SystemPrompt frames the completion for a topic. Roofing prompts embed
// the retrieved sources and forbid claims beyond them.
func (a *Assistant) SystemPrompt(topic Topic, urgency model.Urgency, results []*model.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the helpful virtual assistant of %s, a roofing contractor.\n", a.config.CompanyName)

	switch topic {
	case TopicMeta:
		b.WriteString("The user asks about you. Explain briefly what you can help with. Do not give roofing advice in this reply.\n")
		return b.String()
	case TopicGeneral:
		b.WriteString("Greet the user and ask how you can help with their roof.\n")
		return b.String()
	}

	b.WriteString("Answer only with information from the sources below. If they do not cover the question, say so and suggest a free inspection.\n")
	if urgency == model.UrgencyEmergency {
		fmt.Fprintf(&b, "The user reports an emergency. Start with immediate safety steps and tell them to %s.\n", a.config.EmergencyContact)
	}
	b.WriteString("\nSources:\n")
	for i, result := range results {
		fmt.Fprintf(&b, "\n[%d] %s (%s, similarity %.2f)\n%s\n", i+1, result.Record.Title, result.Record.Metadata.Category, result.Similarity, result.Record.Content)
	}
	return b.String()
}
