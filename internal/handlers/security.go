package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// LockoutServiceInterface defines the admin surface of the lockout tracker
type LockoutServiceInterface interface {
	Unlock(ctx context.Context, accountID, actorID string, cc pkghttp.ClientContext) error
}

// AuditServiceInterface defines the admin surface of the audit service
type AuditServiceInterface interface {
	ListSecurityEvents(ctx context.Context, filter models.SecurityEventFilter) ([]*models.SecurityEvent, error)
	ResolveSecurityEvent(ctx context.Context, eventID, actorID string, cc pkghttp.ClientContext) error
	SecurityEventStats(ctx context.Context) (*models.SecurityEventStats, error)
}

// MonitorServiceInterface defines the on-demand monitor surface
type MonitorServiceInterface interface {
	RunScan(ctx context.Context, notify chan<- models.Alert) (int, error)
}

// SecurityHandler handles the administrative security endpoints.
// Every route behind it requires the admin role.
type SecurityHandler struct {
	lockout LockoutServiceInterface
	audit   AuditServiceInterface
	monitor MonitorServiceInterface
	notify  chan<- models.Alert
}

// NewSecurityHandler creates a new SecurityHandler
func NewSecurityHandler(lockout LockoutServiceInterface, audit AuditServiceInterface, monitor MonitorServiceInterface, notify chan<- models.Alert) *SecurityHandler {
	return &SecurityHandler{
		lockout: lockout,
		audit:   audit,
		monitor: monitor,
		notify:  notify,
	}
}

// SecurityEventResponse is the wire form of a security event
type SecurityEventResponse struct {
	ID          string               `json:"id"`
	EventType   string               `json:"event_type"`
	AccountID   *string              `json:"account_id,omitempty"`
	Severity    string               `json:"severity"`
	Description string               `json:"description"`
	IPAddress   *string              `json:"ip_address,omitempty"`
	Metadata    models.EventMetadata `json:"metadata,omitempty"`
	Resolved    bool                 `json:"resolved"`
	CreatedAt   time.Time            `json:"created_at"`
}

func toSecurityEventResponse(e *models.SecurityEvent) SecurityEventResponse {
	return SecurityEventResponse{
		ID:          e.ID,
		EventType:   e.EventType,
		AccountID:   e.AccountID,
		Severity:    e.Severity,
		Description: e.Description,
		IPAddress:   e.IPAddress,
		Metadata:    e.Metadata,
		Resolved:    e.Resolved,
		CreatedAt:   e.CreatedAt,
	}
}

// UnlockAccount clears an account's lockout. The acting administrator
// lands in the audit trail.
func (h *SecurityHandler) UnlockAccount(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		pkghttp.WriteBadRequest(w, "Account ID is required")
		return
	}

	cc := auth.GetClientContext(r)

	if err := h.lockout.Unlock(r.Context(), accountID, claims.AccountID, cc); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Account unlocked"})
}

// ListSecurityEvents returns security events, newest first, filtered by
// query parameters: severity, event_type, resolved, from, to, limit, offset.
func (h *SecurityHandler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := models.SecurityEventFilter{
		Severity:  q.Get("severity"),
		EventType: q.Get("event_type"),
	}

	if raw := q.Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "resolved must be true or false")
			return
		}
		filter.Resolved = &resolved
	}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "from must be an RFC3339 timestamp")
			return
		}
		filter.From = &from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			pkghttp.WriteBadRequest(w, "to must be an RFC3339 timestamp")
			return
		}
		filter.To = &to
	}

	if raw := q.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil {
			filter.Offset = offset
		}
	}

	events, err := h.audit.ListSecurityEvents(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	responses := make([]SecurityEventResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, toSecurityEventResponse(event))
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": responses,
		"count":  len(responses),
	})
}

// ResolveSecurityEvent marks an event as reviewed.
func (h *SecurityHandler) ResolveSecurityEvent(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	eventID := chi.URLParam(r, "id")
	if eventID == "" {
		pkghttp.WriteBadRequest(w, "Event ID is required")
		return
	}

	cc := auth.GetClientContext(r)

	if err := h.audit.ResolveSecurityEvent(r.Context(), eventID, claims.AccountID, cc); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Security event not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "Event resolved"})
}

// SecurityEventStats returns aggregate counts for the dashboard.
func (h *SecurityHandler) SecurityEventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.audit.SecurityEventStats(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"total":       stats.Total,
		"unresolved":  stats.Unresolved,
		"by_severity": stats.BySeverity,
	})
}

// TriggerMonitorScan runs a monitor scan on demand, outside the
// background schedule.
func (h *SecurityHandler) TriggerMonitorScan(w http.ResponseWriter, r *http.Request) {
	count, err := h.monitor.RunScan(r.Context(), h.notify)
	if err != nil {
		pkghttp.WriteInternalError(w, "Monitor scan failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Scan completed",
		"alerts":  count,
	})
}
