package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/personachat/internal/api"
	"github.com/ashureev/personachat/internal/domain"
	"github.com/ashureev/personachat/internal/history"
	"github.com/ashureev/personachat/internal/identity"
	"github.com/ashureev/personachat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

const defaultHistoryLimit = 50

// Error details returned to clients.
const (
	detailChatRequired   = "agent_id ve user_message zorunlu"
	detailAgentNotFound  = "Agent bulunamadı. Önce /agent_config ile kaydedin veya demo-agent/legacy persona_id kullanın."
	detailAgentMissing   = "Agent bulunamadı"
	detailAgentIDMissing = "agentId zorunlu"
	detailNameMissing    = "name zorunlu"
	detailInternal       = "internal error"
	detailBodyTooLarge   = "request body too large"
	detailInvalidBody    = "invalid request body"
	detailRateLimited    = "rate limit exceeded"
)

// Handler serves the chat and agent administration endpoints.
type Handler struct {
	svc     *Service
	repo    store.Repository
	ledger  *history.Ledger
	limiter RateLimiter
	maxBody int64
	logger  *slog.Logger
}

// HandlerConfig holds HTTP-level limits.
type HandlerConfig struct {
	MaxRequestBodySize int64
}

// NewHandler creates a handler. A nil limiter disables rate limiting.
func NewHandler(svc *Service, repo store.Repository, ledger *history.Ledger, limiter RateLimiter, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		svc:     svc,
		repo:    repo,
		ledger:  ledger,
		limiter: limiter,
		maxBody: maxBody,
		logger:  logger,
	}
}

// RegisterRoutes registers the chat API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.HandleChat)
	r.Get("/chat/history", h.HandleHistory)
	r.Get("/agents", h.HandleListAgents)
	r.Get("/agents/{agent_id}", h.HandleGetAgent)
	r.Post("/agent_config", h.HandleAgentConfig)
	r.Post("/persona", h.HandlePersona)
}

// flexString accepts a JSON string or number. Legacy clients send
// persona_id as a number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type chatRequestBody struct {
	AgentID     flexString `json:"agent_id"`
	PersonaID   flexString `json:"persona_id"`
	SessionID   flexString `json:"session_id"`
	UserMessage string     `json:"user_message"`
	Message     string     `json:"message"`
}

// toRequest applies the legacy persona_id and message aliases.
func (b chatRequestBody) toRequest() ChatRequest {
	req := ChatRequest{
		AgentID:     string(b.AgentID),
		SessionID:   string(b.SessionID),
		UserMessage: b.UserMessage,
	}
	if req.AgentID == "" {
		req.AgentID = string(b.PersonaID)
	}
	if req.UserMessage == "" {
		req.UserMessage = b.Message
	}
	return req
}

// HandleChat handles POST /chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow(r.Context(), rateLimitKey(r)) {
		h.svc.metrics.rateLimitedRequest()
		api.Error(w, http.StatusTooManyRequests, detailRateLimited)
		return
	}

	var body chatRequestBody
	if !h.decode(w, r, &body) {
		return
	}
	req := body.toRequest()
	if req.SessionID == "" {
		req.SessionID = identity.SessionIDFromContext(r.Context())
	}
	req.RequestID = chiMiddleware.GetReqID(r.Context())

	h.logger.Info("Chat request",
		"agent_id", req.AgentID,
		"session_id", req.SessionID,
		"message_length", len(req.UserMessage),
	)

	resp, err := h.svc.Chat(r.Context(), req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, resp)
}

func (h *Handler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		api.Error(w, http.StatusBadRequest, detailChatRequired)
	case errors.Is(err, ErrAgentNotFound):
		api.Error(w, http.StatusNotFound, detailAgentNotFound)
	default:
		h.logger.Error("Chat turn failed", "error", err)
		api.Error(w, http.StatusInternalServerError, detailInternal)
	}
}

// HandleHistory handles GET /chat/history. Turns are returned as stored
// under the resolved agent ID.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agentID := strings.TrimSpace(q.Get("agent_id"))
	sessionID := identity.SanitizeSessionID(q.Get("session_id"))
	if sessionID == "" {
		sessionID = identity.SessionIDFromContext(r.Context())
	}
	if agentID == "" || sessionID == "" {
		api.Error(w, http.StatusBadRequest, "agent_id ve session_id zorunlu")
		return
	}

	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	agent, err := h.svc.AgentFor(r.Context(), agentID)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	turns, err := h.ledger.Turns(r.Context(), sessionID, agent.AgentID, limit)
	if err != nil {
		h.logger.Error("Failed to load chat history", "session_id", sessionID, "agent_id", agent.AgentID, "error", err)
		api.Error(w, http.StatusInternalServerError, detailInternal)
		return
	}

	api.JSON(w, http.StatusOK, map[string]any{
		"status":     api.StatusSuccess,
		"agent_id":   agent.AgentID,
		"session_id": sessionID,
		"count":      len(turns),
		"turns":      turns,
	})
}

// HandleListAgents handles GET /agents.
func (h *Handler) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.repo.ListAgentConfigs(r.Context())
	if err != nil {
		h.logger.Error("Failed to list agents", "error", err)
		api.Error(w, http.StatusInternalServerError, detailInternal)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"status": api.StatusSuccess,
		"count":  len(agents),
		"agents": agents,
	})
}

// HandleGetAgent handles GET /agents/{agent_id}. No fallback is applied.
func (h *Handler) HandleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent_id")
	cfg, err := h.repo.GetAgentConfig(r.Context(), agentID)
	if err != nil {
		h.logger.Error("Failed to get agent", "agent_id", agentID, "error", err)
		api.Error(w, http.StatusInternalServerError, detailInternal)
		return
	}
	if cfg == nil {
		api.Error(w, http.StatusNotFound, detailAgentMissing)
		return
	}
	if cfg.Rules == nil {
		cfg.Rules = []string{}
	}
	if cfg.ProhibitedTopics == nil {
		cfg.ProhibitedTopics = []string{}
	}
	if cfg.InitialContext == nil {
		cfg.InitialContext = map[string]string{}
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"status": api.StatusSuccess,
		"agent":  cfg,
	})
}

type agentConfigRequest struct {
	AgentID           string `json:"agentId"`
	AgentIDSnake      string `json:"agent_id"`
	PersonaTitle      string `json:"persona_title"`
	ModelInstructions struct {
		Tone             string   `json:"tone"`
		Rules            []string `json:"rules"`
		ProhibitedTopics []string `json:"prohibited_topics"`
	} `json:"model_instructions"`
	InitialContext map[string]any `json:"initial_context"`
}

func (b agentConfigRequest) toConfig() *domain.AgentConfig {
	id := strings.TrimSpace(b.AgentID)
	if id == "" {
		id = strings.TrimSpace(b.AgentIDSnake)
	}
	ctx := make(map[string]string, len(b.InitialContext))
	for k, v := range b.InitialContext {
		switch val := v.(type) {
		case string:
			ctx[k] = val
		case nil:
			ctx[k] = ""
		default:
			raw, err := json.Marshal(val)
			if err != nil {
				ctx[k] = fmt.Sprint(val)
				continue
			}
			ctx[k] = string(raw)
		}
	}
	return &domain.AgentConfig{
		AgentID:          id,
		PersonaTitle:     b.PersonaTitle,
		Tone:             b.ModelInstructions.Tone,
		Rules:            b.ModelInstructions.Rules,
		ProhibitedTopics: b.ModelInstructions.ProhibitedTopics,
		InitialContext:   ctx,
	}
}

// HandleAgentConfig handles POST /agent_config (upsert by agent ID).
func (h *Handler) HandleAgentConfig(w http.ResponseWriter, r *http.Request) {
	var body agentConfigRequest
	if !h.decode(w, r, &body) {
		return
	}
	cfg := body.toConfig()
	if cfg.AgentID == "" {
		api.Error(w, http.StatusBadRequest, detailAgentIDMissing)
		return
	}

	if err := h.repo.UpsertAgentConfig(r.Context(), cfg); err != nil {
		h.logger.Error("Failed to save agent config", "agent_id", cfg.AgentID, "error", err)
		api.Error(w, http.StatusInternalServerError, detailInternal)
		return
	}
	h.logger.Info("Agent config saved", "agent_id", cfg.AgentID)
	api.JSON(w, http.StatusOK, map[string]any{
		"status":   api.StatusSuccess,
		"agent_id": cfg.AgentID,
		"message":  "Konfigürasyon kaydedildi",
	})
}

type personaRequest struct {
	Name        string `json:"name"`
	Tone        string `json:"tone"`
	Constraints string `json:"constraints"`
}

// HandlePersona handles POST /persona, the legacy persona registration.
func (h *Handler) HandlePersona(w http.ResponseWriter, r *http.Request) {
	var body personaRequest
	if !h.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Name) == "" {
		api.Error(w, http.StatusBadRequest, detailNameMissing)
		return
	}

	id, err := h.repo.CreateLegacyPersona(r.Context(), &domain.LegacyPersona{
		Name:        body.Name,
		Tone:        body.Tone,
		Constraints: body.Constraints,
	})
	if err != nil {
		h.logger.Error("Failed to create persona", "error", err)
		api.Error(w, http.StatusInternalServerError, detailInternal)
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{
		"status":     api.StatusSuccess,
		"persona_id": id,
	})
}

// decode reads a size-limited JSON body into v and writes the error
// response itself when that fails.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, detailBodyTooLarge)
			return false
		}
		api.Error(w, http.StatusBadRequest, detailInvalidBody)
		return false
	}
	return true
}

// rateLimitKey keys on the anonymous client ID, not the session, so clients
// cannot bypass throttling by rotating session IDs.
func rateLimitKey(r *http.Request) string {
	if id := identity.ClientIDFromContext(r.Context()); id != "" {
		return id
	}
	return identity.IPFromRequest(r)
}
