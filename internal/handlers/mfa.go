package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
	"github.com/carebridge/securitycore/internal/services"
	pkghttp "github.com/carebridge/securitycore/pkg/http"
)

// MFAServiceInterface defines the interface for the MFA lifecycle
type MFAServiceInterface interface {
	InitiateSetup(ctx context.Context, accountID string, cc pkghttp.ClientContext) (*services.MFASetupResult, error)
	VerifySetup(ctx context.Context, accountID, code string, cc pkghttp.ClientContext) error
	Disable(ctx context.Context, accountID, password string, cc pkghttp.ClientContext) error
	Status(ctx context.Context, accountID string) (*services.MFAStatus, error)
}

// MFAHandler handles MFA enrollment HTTP requests
type MFAHandler struct {
	service MFAServiceInterface
}

// NewMFAHandler creates a new MFAHandler
func NewMFAHandler(service MFAServiceInterface) *MFAHandler {
	return &MFAHandler{service: service}
}

// MFASetupResponse carries the one-time enrollment material. The
// plaintext secret appears here and nowhere else.
type MFASetupResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code,omitempty"`
}

// VerifyMFARequest represents the request body for enrollment verification
type VerifyMFARequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// DisableMFARequest represents the request body for disabling MFA
type DisableMFARequest struct {
	Password string `json:"password" validate:"required"`
}

// Setup starts (or restarts) MFA enrollment for the authenticated account.
func (h *MFAHandler) Setup(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	cc := auth.GetClientContext(r)

	result, err := h.service.InitiateSetup(r.Context(), claims.AccountID, cc)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMFAAlreadyEnabled):
			pkghttp.WriteConflict(w, "MFA is already enabled")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Account not found")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MFASetupResponse{
		Secret:          result.Secret,
		ProvisioningURI: result.ProvisioningURI,
		QRCode:          result.QRCodeDataURL,
	})
}

// Verify completes enrollment by proving possession of the secret.
func (h *MFAHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req VerifyMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	cc := auth.GetClientContext(r)

	if err := h.service.VerifySetup(r.Context(), claims.AccountID, req.Code, cc); err != nil {
		switch {
		case errors.Is(err, models.ErrMFAInvalidCode):
			pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_code", "Invalid MFA code")
		case errors.Is(err, models.ErrMFAAlreadyEnabled):
			pkghttp.WriteConflict(w, "MFA is already enabled")
		case errors.Is(err, models.ErrMFANotConfigured):
			pkghttp.WriteBadRequest(w, "MFA setup has not been started")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "MFA enabled"})
}

// Disable turns MFA off after a password re-proof.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req DisableMFARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	cc := auth.GetClientContext(r)

	if err := h.service.Disable(r.Context(), claims.AccountID, req.Password, cc); err != nil {
		switch {
		case errors.Is(err, models.ErrUnauthorized):
			pkghttp.WriteUnauthorized(w, "Password verification failed")
		case errors.Is(err, models.ErrMFANotConfigured):
			pkghttp.WriteBadRequest(w, "MFA is not enabled")
		default:
			pkghttp.WriteInternalError(w, "Internal server error")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "MFA disabled"})
}

// Status reports the enrollment state for the self-service screen.
func (h *MFAHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetAccountFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.AccountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Account not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, status)
}
