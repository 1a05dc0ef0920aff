// Package http provides the HTTP admin and validation gateway for RuleGate.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/c360/rulegate/engine"
	"github.com/c360/rulegate/errors"
	"github.com/c360/rulegate/registry"
	"github.com/c360/rulegate/rule"
)

// Config holds gateway configuration
type Config struct {
	Addr           string           // Listen address, e.g. ":8080"
	AdminToken     string           // Bearer token mapped to the admin principal
	AdminPrincipal engine.Principal // Principal presented to the engine for admin calls
}

// Validate checks the gateway configuration
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig,
			"Gateway", "Validate", "listen address check")
	}
	return nil
}

// Gateway exposes the rule engine over HTTP: validation endpoints for
// callers, rule set administration for the administrator, and a websocket
// stream of RulesDefined events for observers.
type Gateway struct {
	name     string
	config   Config
	engine   *engine.Engine
	registry *registry.Registry
	logger   *slog.Logger
	hub      *eventHub

	server  *http.Server
	running atomic.Bool

	startTime time.Time

	// Metrics (atomic operations)
	requestsTotal   atomic.Uint64
	requestsSuccess atomic.Uint64
	requestsFailed  atomic.Uint64
}

// NewGateway creates a new HTTP gateway in front of eng. The registry may
// be nil, in which case rule set administration over HTTP is disabled and
// PUT /v1/rules answers 501.
func NewGateway(cfg Config, eng *engine.Engine, reg *registry.Registry, logger *slog.Logger) (*Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig,
			"Gateway", "NewGateway", "engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gateway{
		name:     "http-gateway",
		config:   cfg,
		engine:   eng,
		registry: reg,
		logger:   logger,
		hub:      newEventHub(logger),
	}, nil
}

// getOrGenerateRequestID extracts the request ID from headers or generates
// a new one so validation decisions can be traced across systems.
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}

	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Handler returns the gateway's HTTP handler. Exposed separately from
// Start so tests can drive it with httptest.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/validate/address", g.handleValidateAddress)
	mux.HandleFunc("POST /v1/validate/transfer", g.handleValidateTransfer)
	mux.HandleFunc("GET /v1/rules", g.handleListRules)
	mux.HandleFunc("GET /v1/rules/{index}", g.handleRuleAt)
	mux.HandleFunc("PUT /v1/rules", g.handleDefineRules)
	mux.HandleFunc("GET /v1/events", g.handleEvents)
	mux.HandleFunc("GET /v1/status", g.handleStatus)

	return mux
}

// Start begins serving. It returns once the listener is launched; serve
// errors are logged.
func (g *Gateway) Start(_ context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"Gateway", "Start", "gateway startup")
	}

	g.startTime = time.Now()
	g.server = &http.Server{
		Addr:              g.config.Addr,
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		g.logger.Info("HTTP gateway listening", "addr", g.config.Addr)
		if err := g.server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			g.logger.Error("HTTP gateway serve failed", "addr", g.config.Addr, "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the gateway down.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.running.CompareAndSwap(true, false) {
		return nil
	}

	g.hub.closeAll()
	if err := g.server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Gateway", "Stop", "server shutdown")
	}
	return nil
}

// RulesDefined implements engine.Notifier by broadcasting the event to all
// connected websocket clients.
func (g *Gateway) RulesDefined(_ context.Context, event engine.RulesDefinedEvent) error {
	g.hub.broadcast(event)
	return nil
}

type validateAddressRequest struct {
	Address rule.Address `json:"address"`
}

type validateTransferRequest struct {
	From   rule.Address `json:"from"`
	To     rule.Address `json:"to"`
	Amount uint64       `json:"amount"`
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	RequestID string `json:"request_id"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (g *Gateway) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	reqID := getOrGenerateRequestID(r)
	g.requestsTotal.Add(1)

	var req validateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.fail(w, http.StatusBadRequest, "malformed request body", reqID)
		return
	}
	if req.Address == "" {
		g.fail(w, http.StatusBadRequest, "address is required", reqID)
		return
	}

	valid, err := g.engine.ValidateAddress(r.Context(), req.Address)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "Address validation failed",
			"request_id", reqID, "error", err)
		g.fail(w, http.StatusBadGateway, "rule evaluation failed", reqID)
		return
	}

	g.ok(w, http.StatusOK, validateResponse{Valid: valid, RequestID: reqID})
}

func (g *Gateway) handleValidateTransfer(w http.ResponseWriter, r *http.Request) {
	reqID := getOrGenerateRequestID(r)
	g.requestsTotal.Add(1)

	var req validateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.fail(w, http.StatusBadRequest, "malformed request body", reqID)
		return
	}
	if req.From == "" || req.To == "" {
		g.fail(w, http.StatusBadRequest, "from and to are required", reqID)
		return
	}

	valid, err := g.engine.ValidateTransfer(r.Context(), req.From, req.To, req.Amount)
	if err != nil {
		g.logger.ErrorContext(r.Context(), "Transfer validation failed",
			"request_id", reqID, "error", err)
		g.fail(w, http.StatusBadGateway, "rule evaluation failed", reqID)
		return
	}

	g.ok(w, http.StatusOK, validateResponse{Valid: valid, RequestID: reqID})
}

type ruleInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type listRulesResponse struct {
	Engine string     `json:"engine"`
	Count  int        `json:"count"`
	Rules  []ruleInfo `json:"rules"`
}

func (g *Gateway) handleListRules(w http.ResponseWriter, r *http.Request) {
	g.requestsTotal.Add(1)

	count := g.engine.RuleCount()
	resp := listRulesResponse{
		Engine: g.engine.Name(),
		Count:  count,
		Rules:  make([]ruleInfo, 0, count),
	}
	for i := 0; i < count; i++ {
		held, err := g.engine.RuleAt(i)
		if err != nil {
			// The set was replaced with a smaller one mid-listing; the
			// shorter listing is still a consistent snapshot to return.
			break
		}
		resp.Rules = append(resp.Rules, ruleInfo{Index: i, Name: held.Name()})
	}

	g.ok(w, http.StatusOK, resp)
}

func (g *Gateway) handleRuleAt(w http.ResponseWriter, r *http.Request) {
	reqID := getOrGenerateRequestID(r)
	g.requestsTotal.Add(1)

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		g.fail(w, http.StatusBadRequest, "index must be an integer", reqID)
		return
	}

	held, err := g.engine.RuleAt(index)
	if err != nil {
		if stderrors.Is(err, errors.ErrOutOfRange) {
			g.fail(w, http.StatusNotFound, "rule index out of range", reqID)
			return
		}
		g.fail(w, http.StatusInternalServerError, "rule lookup failed", reqID)
		return
	}

	g.ok(w, http.StatusOK, ruleInfo{Index: index, Name: held.Name()})
}

type defineRulesRequest struct {
	Rules []registry.Spec `json:"rules"`
}

func (g *Gateway) handleDefineRules(w http.ResponseWriter, r *http.Request) {
	reqID := getOrGenerateRequestID(r)
	g.requestsTotal.Add(1)

	if g.registry == nil {
		g.fail(w, http.StatusNotImplemented, "rule administration is not enabled", reqID)
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		g.fail(w, http.StatusUnauthorized, "missing bearer token", reqID)
		return
	}

	principal := engine.Principal("anonymous")
	if g.config.AdminToken != "" && token == g.config.AdminToken {
		principal = g.config.AdminPrincipal
	}

	var req defineRulesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.fail(w, http.StatusBadRequest, "malformed request body", reqID)
		return
	}

	rules, err := g.registry.BuildSet(req.Rules)
	if err != nil {
		if stderrors.Is(err, errors.ErrUnknownRuleKind) {
			g.fail(w, http.StatusBadRequest, err.Error(), reqID)
			return
		}
		g.fail(w, http.StatusBadRequest, "rule set construction failed", reqID)
		return
	}

	if err := g.engine.DefineRules(r.Context(), principal, rules); err != nil {
		if stderrors.Is(err, errors.ErrUnauthorized) {
			g.fail(w, http.StatusForbidden, "principal not authorized", reqID)
			return
		}
		g.fail(w, http.StatusInternalServerError, "rule set replacement failed", reqID)
		return
	}

	g.requestsSuccess.Add(1)
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(http.StatusNoContent)
}

type statusResponse struct {
	Name          string `json:"name"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Engine        string `json:"engine"`
	RuleCount     int    `json:"rule_count"`
	EventClients  int    `json:"event_clients"`
	Requests      struct {
		Total   uint64 `json:"total"`
		Success uint64 `json:"success"`
		Failed  uint64 `json:"failed"`
	} `json:"requests"`
}

func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	g.requestsTotal.Add(1)

	resp := statusResponse{
		Name:         g.name,
		Engine:       g.engine.Name(),
		RuleCount:    g.engine.RuleCount(),
		EventClients: g.hub.clientCount(),
	}
	if !g.startTime.IsZero() {
		resp.UptimeSeconds = int64(time.Since(g.startTime).Seconds())
	}
	resp.Requests.Total = g.requestsTotal.Load()
	resp.Requests.Success = g.requestsSuccess.Load()
	resp.Requests.Failed = g.requestsFailed.Load()

	g.ok(w, http.StatusOK, resp)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}

func (g *Gateway) ok(w http.ResponseWriter, status int, body any) {
	g.requestsSuccess.Add(1)
	writeJSON(w, status, body)
}

func (g *Gateway) fail(w http.ResponseWriter, status int, msg, reqID string) {
	g.requestsFailed.Add(1)
	writeJSON(w, status, errorResponse{Error: msg, RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
