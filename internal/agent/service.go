package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/personachat/internal/domain"
	"github.com/ashureev/personachat/internal/guard"
	"github.com/ashureev/personachat/internal/history"
	"github.com/ashureev/personachat/internal/llm"
	"github.com/ashureev/personachat/internal/policy"
	"github.com/ashureev/personachat/internal/prompt"
)

// Service runs chat turns: screen, resolve, assemble, generate, classify
// and persist.
type Service struct {
	resolver *Resolver
	ledger   *history.Ledger
	provider llm.Provider
	screen   *guard.Screen
	cfg      Config
	metrics  *Metrics
	convLog  ConversationLogger
	logger   *slog.Logger
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithMetrics records turn outcomes in m.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithConversationLogger writes user and assistant messages to l.
func WithConversationLogger(l ConversationLogger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.convLog = l
		}
	}
}

// WithScreen replaces the default injection screen.
func WithScreen(screen *guard.Screen) ServiceOption {
	return func(s *Service) {
		if screen != nil {
			s.screen = screen
		}
	}
}

// NewService creates a chat service.
func NewService(resolver *Resolver, ledger *history.Ledger, provider llm.Provider, cfg Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.HistoryMaxMessages <= 0 {
		cfg.HistoryMaxMessages = def.HistoryMaxMessages
	}
	if cfg.HistoryMaxChars <= 0 {
		cfg.HistoryMaxChars = def.HistoryMaxChars
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = def.LLMTimeout
	}
	if cfg.GuardText == "" {
		cfg.GuardText = prompt.SystemGuard
	}
	if provider == nil {
		provider = llm.Unavailable{}
	}

	s := &Service{
		resolver: resolver,
		ledger:   ledger,
		provider: provider,
		screen:   guard.New(nil),
		cfg:      cfg,
		convLog:  noopConversationLogger{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat runs one turn. Only validation and resolution failures are returned
// as errors; provider and persistence failures degrade into the reply.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	started := time.Now()
	trace := []State{StateStart}
	fail := func(err error) (*ChatResponse, error) {
		s.metrics.observeFailure(started)
		return nil, &TurnError{From: trace[len(trace)-1], Err: err}
	}

	// Screening precedes validation so an attacker payload never reaches
	// storage, even when the request is otherwise malformed.
	v := s.screen.Check(req.UserMessage)
	trace = append(trace, StateScreened)
	if v.Blocked {
		s.logger.Warn("Blocked prompt injection attempt",
			"session_id", req.SessionID,
			"agent_id", req.AgentID,
			"phrase", v.Phrase,
		)
		s.logEvent(req, eventGuardBlock, "inbound", req.UserMessage, map[string]any{"phrase": v.Phrase})
		resp := &ChatResponse{
			Status: statusSuccess,
			Reply:  guard.RefusalText,
			Metadata: Metadata{
				TopicDetected: policy.TopicSecurity,
				TokensUsed:    0,
				Blocked:       true,
				AgentID:       req.AgentID,
				SessionID:     req.SessionID,
			},
			State: StateDone,
			Trace: append(trace, StateDone),
		}
		s.metrics.observeTurn(resp, started)
		return resp, nil
	}

	if err := validate(req); err != nil {
		return fail(err)
	}

	agent, err := s.resolver.Resolve(ctx, req.AgentID)
	if err != nil {
		return fail(err)
	}
	trace = append(trace, StateResolved)

	s.logEvent(req, eventUserMessage, "outbound", req.UserMessage, nil)

	var transcript string
	if req.SessionID != "" {
		transcript = s.ledger.Compact(ctx, req.SessionID, agent.AgentID, s.cfg.HistoryMaxMessages, s.cfg.HistoryMaxChars)
	}
	fullPrompt := prompt.Build(s.cfg.GuardText, agent, transcript, req.UserMessage)
	trace = append(trace, StateAssembled)

	resp := &ChatResponse{
		Status: statusSuccess,
		Metadata: Metadata{
			AgentID:   agent.AgentID,
			SessionID: req.SessionID,
		},
	}

	gen, genErr := s.generate(ctx, fullPrompt)
	trace = append(trace, StateGenerated)
	if genErr != nil {
		s.logger.Error("Model generation failed",
			"session_id", req.SessionID,
			"agent_id", agent.AgentID,
			"error", genErr,
		)
		s.metrics.providerError()
		resp.Reply = ProviderErrorReply
		resp.Metadata.TopicDetected = policy.TopicError
	} else {
		resp.Reply = gen.Text
		resp.Metadata.TokensUsed = s.tokensUsed(ctx, gen, fullPrompt)

		resp.Metadata.TopicDetected = policy.ClassifyTopic(req.UserMessage)
		resp.Reply, resp.Metadata.Blocked = policy.FilterProhibited(resp.Reply, req.UserMessage, agent.ProhibitedTopics)
		trace = append(trace, StateClassified)
	}

	if req.SessionID != "" {
		if res := s.ledger.AppendBestEffort(ctx, req.SessionID, agent.AgentID, req.UserMessage, resp.Reply); res.Failed {
			s.metrics.persistenceFailure()
		}
	}
	trace = append(trace, StatePersisted)

	s.logEvent(ChatRequest{AgentID: agent.AgentID, SessionID: req.SessionID, RequestID: req.RequestID},
		eventAssistantMessage, "inbound", resp.Reply, map[string]any{
			"topic_detected": resp.Metadata.TopicDetected,
			"tokens_used":    resp.Metadata.TokensUsed,
			"blocked":        resp.Metadata.Blocked,
			"source":         agent.Source,
		})

	resp.State = StateDone
	resp.Trace = append(trace, StateDone)
	s.metrics.observeTurn(resp, started)
	return resp, nil
}

// Close releases the conversation log.
func (s *Service) Close() error {
	return s.convLog.Close()
}

func validate(req ChatRequest) error {
	var missing []string
	if strings.TrimSpace(req.AgentID) == "" {
		missing = append(missing, "agent_id")
	}
	if strings.TrimSpace(req.UserMessage) == "" {
		missing = append(missing, "user_message")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, " and "))
	}
	return nil
}

func (s *Service) generate(ctx context.Context, fullPrompt string) (llm.Generation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	gen, err := s.provider.Generate(ctx, fullPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return llm.Generation{}, fmt.Errorf("timed out after %s: %w", s.cfg.LLMTimeout, err)
		}
		return llm.Generation{}, err
	}
	return gen, nil
}

// tokensUsed prefers the provider's usage report and otherwise counts the
// prompt and answer separately. Count failures contribute zero.
func (s *Service) tokensUsed(ctx context.Context, gen llm.Generation, fullPrompt string) int {
	if gen.HasUsage {
		return gen.TotalTokens
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	total := 0
	for _, text := range []string{fullPrompt, gen.Text} {
		n, err := s.provider.CountTokens(ctx, text)
		if err != nil {
			s.logger.Debug("Token count failed", "error", err)
			continue
		}
		total += n
	}
	return total
}

func (s *Service) logEvent(req ChatRequest, eventType, direction, content string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["request_id"] = req.RequestID
	s.convLog.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		AgentID:    req.AgentID,
		SessionID:  req.SessionID,
		Channel:    "chat_http",
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Content:    cleanForReadability(content),
		Meta:       meta,
	})
}

// AgentFor resolves agentID; used by the history endpoint to find the
// agent ID turns were stored under.
func (s *Service) AgentFor(ctx context.Context, agentID string) (*domain.ResolvedAgent, error) {
	return s.resolver.Resolve(ctx, agentID)
}
