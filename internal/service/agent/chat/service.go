// Package chat implements the assistant's chat service: it loads history,
// runs the agent loop, resolves confirmations and persists the outcome.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/miguelbenajes/HoldedConnector/internal/config"
	"github.com/miguelbenajes/HoldedConnector/internal/domain"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/models/ledger"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/loop"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/pending"
)

const (
	cancelledMessage     = "Action cancelled."
	confirmedDescription = "Confirmed and executed"
)

// StatsReader provides the ledger statistics shown in the system prompt.
type StatsReader interface {
	Stats(ctx context.Context) (ledger.Stats, error)
}

// DefinitionLister lists the registered tools.
type DefinitionLister interface {
	Definitions() []agent.ToolDefinition
}

// Config holds the settings the service reports and applies.
type Config struct {
	Model        string
	Provider     string
	SafeMode     bool
	MaxRounds    int
	PendingTTL   time.Duration
	HistoryLimit int
}

// Dependencies are the collaborators of the chat service.
type Dependencies struct {
	Loop          *loop.Loop
	Resolver      *pending.Resolver
	Conversations repositories.ConversationRepository
	Favorites     repositories.FavoriteRepository
	Stats         StatsReader
	Tools         DefinitionLister
}

// chatService implements the ChatService interface
type chatService struct {
	deps   Dependencies
	config Config
	logger *slog.Logger
}

// NewChatService creates a new chat service
func NewChatService(deps Dependencies, cfg Config, logger *slog.Logger) agentsvc.ChatService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &chatService{deps: deps, config: cfg, logger: logger}
}

// StreamChat starts the loop for one user message.
func (s *chatService) StreamChat(ctx context.Context, req *agentsvc.ChatRequest) (*agentsvc.ChatStream, error) {
	if err := s.validateChatRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	history, err := s.deps.Conversations.RecentTurns(ctx, conversationID, s.config.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	transcript := historyMessages(history)
	transcript = append(transcript, agent.Message{Role: agent.MessageRoleUser, Content: req.Message})

	s.logger.Info("chat started",
		"conversation_id", conversationID,
		"history_turns", len(history),
	)

	events := s.deps.Loop.Stream(ctx, &loop.Request{
		ConversationID: conversationID,
		UserMessage:    req.Message,
		System:         s.systemPrompt(ctx),
		Transcript:     transcript,
	}, s.persistResult)

	return &agentsvc.ChatStream{ConversationID: conversationID, Events: events}, nil
}

// Chat runs the loop to completion and collects the events into one response.
func (s *chatService) Chat(ctx context.Context, req *agentsvc.ChatRequest) (*agentsvc.ChatResponse, error) {
	stream, err := s.StreamChat(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := &agentsvc.ChatResponse{ConversationID: stream.ConversationID}
	var text strings.Builder
	for ev := range stream.Events {
		switch data := ev.Data.(type) {
		case agent.TextDeltaEvent:
			text.WriteString(data.Text)
		case []agent.ToolUsed:
			resp.ToolCallsSummary = data
		case []json.RawMessage:
			resp.Charts = data
		case *agent.ConfirmationNeededEvent:
			resp.Type = agentsvc.ResponseConfirmationNeeded
			resp.Content = data.ActionDescription
			resp.Confirmation = data
		case agent.ErrorEvent:
			resp.Type = agentsvc.ResponseError
			resp.Content = data.Content
		case agent.DoneEvent:
			resp.Type = agentsvc.ResponseAssistant
			resp.Content = text.String()
		}
	}

	if resp.Type == "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("stream ended without a terminal event")
	}
	return resp, nil
}

// persistResult appends the exchange's turns once the loop has finished.
// A suspended exchange is persisted when the action is resolved.
func (s *chatService) persistResult(ctx context.Context, result *loop.Result) {
	if result.Confirmation != nil {
		return
	}

	user := &agent.Turn{ConversationID: result.ConversationID, Role: agent.RoleUser, Content: result.UserMessage}
	reply := &agent.Turn{ConversationID: result.ConversationID}
	if result.Err != nil {
		reply.Role = agent.RoleError
		reply.Content = result.ErrorMessage()
		s.logger.Error("chat failed",
			"conversation_id", result.ConversationID,
			"error", result.Err,
		)
	} else {
		reply.Role = agent.RoleAssistant
		reply.Content = result.Text
		reply.ToolCalls = result.ToolsUsed
	}

	if err := s.deps.Conversations.AppendTurns(ctx, user, reply); err != nil {
		s.logger.Error("failed to persist turns",
			"conversation_id", result.ConversationID,
			"error", err,
		)
	}
}

// Confirm resolves a pending action and resumes the exchange once.
func (s *chatService) Confirm(ctx context.Context, req *agentsvc.ConfirmRequest) (*agentsvc.ChatResponse, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.StateID, validation.Required),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	outcome, err := s.deps.Resolver.Resolve(ctx, req.StateID, req.Confirmed, req.OverrideArguments)
	if err != nil {
		if errors.Is(err, domain.ErrActionExpired) {
			return nil, err
		}
		s.logger.Error("pending action failed", "state_id", req.StateID, "error", err)
		return &agentsvc.ChatResponse{Type: agentsvc.ResponseError, Content: loop.ErrorMessage(err)}, nil
	}

	resume := outcome.Resume
	user := &agent.Turn{ConversationID: resume.ConversationID, Role: agent.RoleUser, Content: resume.UserMessage}

	if !outcome.Confirmed {
		cancelled := &agent.Turn{
			ConversationID: resume.ConversationID,
			Role:           agent.RoleAssistant,
			Content:        "Action cancelled: " + outcome.ToolName,
		}
		if err := s.deps.Conversations.AppendTurns(ctx, user, cancelled); err != nil {
			return nil, err
		}
		return &agentsvc.ChatResponse{
			Type:           agentsvc.ResponseAssistant,
			Content:        cancelledMessage,
			ConversationID: resume.ConversationID,
		}, nil
	}

	transcript := make([]agent.Message, 0, len(resume.Transcript)+1)
	transcript = append(transcript, resume.Transcript...)
	transcript = append(transcript, agent.Message{
		Role:       agent.MessageRoleTool,
		Content:    pending.OutcomeContent(outcome),
		ToolCallID: resume.ToolCallID,
	})

	text, err := s.deps.Loop.Complete(ctx, resume.System, transcript)
	if err != nil {
		s.logger.Error("resume after confirmation failed",
			"conversation_id", resume.ConversationID,
			"tool", outcome.ToolName,
			"error", err,
		)
		failure := &agent.Turn{ConversationID: resume.ConversationID, Role: agent.RoleError, Content: loop.ErrorMessage(err)}
		if err := s.deps.Conversations.AppendTurns(ctx, user, failure); err != nil {
			s.logger.Error("failed to persist turns", "conversation_id", resume.ConversationID, "error", err)
		}
		return &agentsvc.ChatResponse{
			Type:           agentsvc.ResponseError,
			Content:        failure.Content,
			ConversationID: resume.ConversationID,
		}, nil
	}
	if strings.TrimSpace(text) == "" {
		text = fallbackText(outcome)
	}

	confirmed := agent.ToolCallSummary{Tool: outcome.ToolName, Description: confirmedDescription, Confirmed: true}
	if outcome.ToolErr != nil {
		confirmed.Result = outcome.ToolErr.Error()
	}
	reply := &agent.Turn{
		ConversationID: resume.ConversationID,
		Role:           agent.RoleAssistant,
		Content:        text,
		ToolCalls:      append(append([]agent.ToolCallSummary(nil), resume.ToolsUsed...), confirmed),
	}
	if err := s.deps.Conversations.AppendTurns(ctx, user, reply); err != nil {
		return nil, err
	}

	return &agentsvc.ChatResponse{
		Type:             agentsvc.ResponseAssistant,
		Content:          text,
		ConversationID:   resume.ConversationID,
		ToolCallsSummary: []agent.ToolUsed{{Tool: outcome.ToolName, Description: confirmedDescription}},
	}, nil
}

func fallbackText(o *agent.Outcome) string {
	if o.ToolErr != nil {
		return fmt.Sprintf("The action could not be completed: %v", o.ToolErr)
	}
	return "Action completed."
}

func (s *chatService) GetHistory(ctx context.Context, conversationID string) ([]agent.Turn, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", domain.ErrValidation)
	}
	return s.deps.Conversations.ListTurns(ctx, conversationID)
}

func (s *chatService) ClearHistory(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("%w: conversation_id is required", domain.ErrValidation)
	}
	n, err := s.deps.Conversations.ClearConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	s.logger.Info("conversation cleared", "conversation_id", conversationID, "turns", n)
	return nil
}

func (s *chatService) ListConversations(ctx context.Context) ([]agent.ConversationSummary, error) {
	return s.deps.Conversations.ListConversations(ctx, config.MaxConversationListing)
}

func (s *chatService) ListFavorites(ctx context.Context) ([]agent.Favorite, error) {
	return s.deps.Favorites.ListFavorites(ctx)
}

func (s *chatService) AddFavorite(ctx context.Context, req *agentsvc.AddFavoriteRequest) (*agent.Favorite, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.Label = strings.TrimSpace(req.Label)
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Query, validation.Required, validation.RuneLength(1, config.MaxFavoriteQueryLength)),
		validation.Field(&req.Label, validation.RuneLength(0, config.MaxFavoriteQueryLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	fav := &agent.Favorite{Query: req.Query, Label: req.Label}
	if fav.Label == "" {
		fav.Label = truncateRunes(req.Query, config.FavoriteLabelLength)
	}
	if err := s.deps.Favorites.CreateFavorite(ctx, fav); err != nil {
		return nil, err
	}
	return fav, nil
}

func (s *chatService) RemoveFavorite(ctx context.Context, id int64) error {
	return s.deps.Favorites.DeleteFavorite(ctx, id)
}

func (s *chatService) Settings() *agentsvc.Settings {
	definitions := s.deps.Tools.Definitions()
	infos := make([]agentsvc.ToolInfo, 0, len(definitions))
	for _, def := range definitions {
		infos = append(infos, agentsvc.ToolInfo{Name: def.Name, Classification: def.Classification})
	}
	return &agentsvc.Settings{
		Model:             s.config.Model,
		Provider:          s.config.Provider,
		SafeMode:          s.config.SafeMode,
		MaxRounds:         s.config.MaxRounds,
		PendingTTLSeconds: int(s.config.PendingTTL / time.Second),
		Tools:             infos,
	}
}

func (s *chatService) validateChatRequest(req *agentsvc.ChatRequest) error {
	req.Message = strings.TrimSpace(req.Message)
	return validation.ValidateStruct(req,
		validation.Field(&req.Message,
			validation.Required,
			validation.RuneLength(1, config.MaxMessageLength),
		),
		validation.Field(&req.ConversationID, validation.Length(0, 128)),
	)
}

// systemPrompt falls back to empty statistics when the ledger is unreadable.
func (s *chatService) systemPrompt(ctx context.Context) string {
	stats, err := s.deps.Stats.Stats(ctx)
	if err != nil {
		s.logger.Warn("failed to read ledger stats", "error", err)
	}
	return BuildSystemPrompt(stats, s.config.SafeMode)
}

// historyMessages keeps user and assistant turns; error and audit turns are
// not shown to the model.
func historyMessages(turns []agent.Turn) []agent.Message {
	messages := make([]agent.Message, 0, len(turns)+1)
	for _, t := range turns {
		switch t.Role {
		case agent.RoleUser:
			messages = append(messages, agent.Message{Role: agent.MessageRoleUser, Content: t.Content})
		case agent.RoleAssistant:
			if t.Content == "" {
				continue
			}
			messages = append(messages, agent.Message{Role: agent.MessageRoleAssistant, Content: t.Content})
		}
	}
	return messages
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
