package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

const (
	rootText        = "✅ Compliance Bot rodando!"
	maxRequestBytes = 64 << 10
)

// Lookuper answers protocol lookups. *intake.Engine implements it.
type Lookuper interface {
	Lookup(ctx context.Context, protocol, credential, senderID string) (report.View, error)
}

// HTTPHandler serves the public HTTP surface: liveness text, the protocol
// lookup portal and a JSON event endpoint for gateways without an adapter.
// Gateway webhooks and operational endpoints are mounted with Handle.
type HTTPHandler struct {
	ingress *Ingress
	lookup  Lookuper
	mux     *http.ServeMux
}

func NewHTTPHandler(ingress *Ingress, lookup Lookuper) *HTTPHandler {
	h := &HTTPHandler{
		ingress: ingress,
		lookup:  lookup,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("POST /consulta", h.handleLookup)
	h.mux.HandleFunc("POST /api/v1/events", h.handleEvents)
	return h
}

// Handle mounts an extra handler, e.g. the Twilio webhook or /metrics.
func (h *HTTPHandler) Handle(pattern string, handler http.Handler) {
	h.mux.Handle(pattern, handler)
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *HTTPHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(rootText))
}

type lookupRequest struct {
	Protocol   string `json:"protocolo"`
	Credential string `json:"senha"`
}

type lookupResponse struct {
	Status  string       `json:"status"`
	Report  *report.View `json:"denuncia,omitempty"`
	Message string       `json:"mensagem,omitempty"`
}

func (h *HTTPHandler) handleLookup(w http.ResponseWriter, r *http.Request) {
	if h.ingress != nil && !h.ingress.AllowLookup(clientAddr(r)) {
		h.ingress.metrics.RateLimited()
		writeJSON(w, http.StatusTooManyRequests, lookupResponse{Status: "erro", Message: "Muitas consultas. Tente novamente em instantes"})
		return
	}

	var req lookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, lookupResponse{Status: "erro", Message: "Requisição inválida"})
		return
	}
	if strings.TrimSpace(req.Protocol) == "" || strings.TrimSpace(req.Credential) == "" {
		writeJSON(w, http.StatusBadRequest, lookupResponse{Status: "erro", Message: "Informe protocolo e senha"})
		return
	}

	// The portal has no sender identity; only credential-backed lookups succeed.
	view, err := h.lookup.Lookup(r.Context(), req.Protocol, req.Credential, "")
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, lookupResponse{Status: "ok", Report: &view})
	case ouvErrors.IsCategory(err, ouvErrors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, lookupResponse{Status: "erro", Message: "Protocolo ou senha inválidos"})
	default:
		slog.Error("Lookup failed", "error", err, "category", ouvErrors.Category(err))
		writeJSON(w, http.StatusInternalServerError, lookupResponse{Status: "erro", Message: "Erro interno"})
	}
}

type eventRequest struct {
	ID       string             `json:"id"`
	Source   string             `json:"source"`
	SenderID string             `json:"sender_id"`
	Content  string             `json:"content"`
	Media    []session.MediaRef `json:"media"`
	Metadata map[string]string  `json:"metadata"`
}

type eventResponse struct {
	Status  string   `json:"status"`
	ID      string   `json:"id"`
	Replies []string `json:"replies,omitempty"`
}

// handleEvents runs one message synchronously and returns the replies in the
// response body instead of delivering them.
func (h *HTTPHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SenderID == "" {
		http.Error(w, "Missing required field: sender_id", http.StatusBadRequest)
		return
	}
	if req.Source == "" {
		req.Source = "http"
	}

	evt := NewEvent(req.Source, TypeUserMessage, req.SenderID, req.Content, req.Metadata)
	evt.ExternalID = req.ID
	evt.Media = req.Media

	replies, err := h.ingress.Process(r.Context(), &evt)
	resp := eventResponse{Status: "processed", ID: evt.ID}
	for _, o := range replies {
		resp.Replies = append(resp.Replies, o.Text)
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ouvErrors.ErrDuplicateEvent):
		// Idempotency: Return 200 OK for duplicates
		resp.Status = "duplicate"
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, ouvErrors.ErrRateLimited):
		resp.Status = "rate_limited"
		writeJSON(w, http.StatusTooManyRequests, resp)
	case errors.Is(err, ouvErrors.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("Failed to process event", "error", err, "category", ouvErrors.Category(err))
		resp.Status = "error"
		writeJSON(w, http.StatusServiceUnavailable, resp)
	}
}

// clientAddr is the host part of the connection's remote address.
// Forwarding headers are ignored since any client can set them.
func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
