package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/investing"
	"investing_monitor/internal/models"
	"investing_monitor/internal/repository"
	"investing_monitor/internal/secrets"
	"investing_monitor/internal/session"
)

// CredentialsHandler manages the stored provider login.
type CredentialsHandler struct {
	client    *investing.Client
	credsRepo *repository.CredentialsRepository
	tokenRepo *repository.ProviderSessionRepository
	sessions  *session.Manager
	encryptor *secrets.Encryptor
	seed      string
}

// NewCredentialsHandler creates a new CredentialsHandler.
func NewCredentialsHandler(
	client *investing.Client,
	credsRepo *repository.CredentialsRepository,
	tokenRepo *repository.ProviderSessionRepository,
	sessions *session.Manager,
	encryptor *secrets.Encryptor,
	seed string,
) *CredentialsHandler {
	return &CredentialsHandler{
		client:    client,
		credsRepo: credsRepo,
		tokenRepo: tokenRepo,
		sessions:  sessions,
		encryptor: encryptor,
		seed:      seed,
	}
}

type saveCredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsStatusResponse struct {
	Configured   bool       `json:"configured"`
	Email        string     `json:"email,omitempty"`
	SessionState string     `json:"session_state"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// Save validates new provider credentials with a live login, then stores
// them encrypted. The existing session is discarded so the next fetch uses
// the new account.
func (h *CredentialsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveCredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, apperrors.Validation("invalid email address"))
		return
	}
	if req.Password == "" {
		respondError(w, apperrors.Validation("password is required"))
		return
	}

	// Keep the existing device identity across credential updates so the
	// provider does not see a new device on every password change.
	udid := ""
	if existing, err := h.credsRepo.Get(); err == nil && existing != nil {
		udid = existing.UDID
	}
	if udid == "" {
		udid = investing.GenerateUDID(h.seed)
	}

	// Prove the credentials before storing them.
	if _, err := h.client.Login(r.Context(), req.Email, req.Password, udid); err != nil {
		if errors.Is(err, investing.ErrAuthenticationFailed) {
			respondError(w, apperrors.Wrap(apperrors.ErrInvalidCredentials, "provider rejected credentials", err))
			return
		}
		respondError(w, apperrors.Wrap(apperrors.ErrNetwork, "could not reach provider", err))
		return
	}

	ciphertext, nonce, err := h.encryptor.Encrypt(req.Password, secrets.ProviderPasswordPurpose)
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "encrypting password", err))
		return
	}

	if err := h.credsRepo.Save(&models.Credentials{
		Email:              req.Email,
		PasswordCiphertext: ciphertext,
		PasswordNonce:      nonce,
		UDID:               udid,
	}); err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "storing credentials", err))
		return
	}

	if err := h.tokenRepo.Clear(); err != nil {
		log.Printf("Error clearing cached token: %v", err)
	}
	h.sessions.Reset()

	log.Printf("[Credentials] Updated provider credentials for %s", req.Email)
	respondJSON(w, http.StatusOK, credentialsStatusResponse{
		Configured:   true,
		Email:        req.Email,
		SessionState: h.sessions.State().String(),
	})
}

// Status reports whether credentials are configured and the current
// session state. The password is never returned.
func (h *CredentialsHandler) Status(w http.ResponseWriter, r *http.Request) {
	creds, err := h.credsRepo.Get()
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "loading credentials", err))
		return
	}

	resp := credentialsStatusResponse{
		SessionState: h.sessions.State().String(),
	}
	if creds != nil {
		resp.Configured = true
		resp.Email = creds.Email
		resp.UpdatedAt = &creds.UpdatedAt
	}
	respondJSON(w, http.StatusOK, resp)
}

type providerPortfolioResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// ProviderPortfolios lists the position-type portfolios available on the
// provider account, for picking which ones to track.
func (h *CredentialsHandler) ProviderPortfolios(w http.ResponseWriter, r *http.Request) {
	tok, err := h.sessions.Token(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	portfolios, err := h.client.GetPortfolios(r.Context(), tok.Value, tok.UDID)
	if errors.Is(err, investing.ErrTokenExpired) {
		h.sessions.Invalidate(tok.Value)
		if tok, err = h.sessions.Token(r.Context()); err == nil {
			portfolios, err = h.client.GetPortfolios(r.Context(), tok.Value, tok.UDID)
		}
	}
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrNetwork, "listing provider portfolios", err))
		return
	}

	resp := make([]providerPortfolioResponse, 0, len(portfolios))
	for _, p := range portfolios {
		resp = append(resp, providerPortfolioResponse{
			ID:       p.ID.String(),
			Name:     p.Name,
			Currency: p.CurrSign,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}
