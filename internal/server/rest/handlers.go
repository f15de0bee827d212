package rest

import (
	"context"
	"net"
	"net/http"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/logging"
	"github.com/dmitrijs2005/harvesthub/internal/server/documents"
	"github.com/dmitrijs2005/harvesthub/internal/server/services"
	"github.com/dmitrijs2005/harvesthub/internal/server/validation"
)

// DocumentPresigner issues upload targets for business documents.
type DocumentPresigner interface {
	PresignUpload(ctx context.Context) (*documents.Upload, error)
}

type Handlers struct {
	registration *services.RegistrationService
	verification *services.VerificationService
	guard        *services.Guard
	tokens       *services.TokenService
	documents    DocumentPresigner
	metrics      *Metrics
	logger       logging.Logger
}

func NewHandlers(rs *services.RegistrationService, vs *services.VerificationService, g *services.Guard,
	ts *services.TokenService, d DocumentPresigner, m *Metrics, l logging.Logger) *Handlers {
	return &Handlers{
		registration: rs,
		verification: vs,
		guard:        g,
		tokens:       ts,
		documents:    d,
		metrics:      m,
		logger:       l.With("module", "rest"),
	}
}

// clientIP returns the request's client address. RealIP middleware has
// already replaced RemoteAddr when a forwarding header was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// detach keeps work going after the client disconnects.
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// fail writes err. Infrastructure errors are logged with the client IP and
// answered with a generic message.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if common.KindOf(err) == common.KindInfrastructure {
		h.logger.Error(r.Context(), op+" failed", "ip", clientIP(r), "error", err)
	}
	writeError(w, err)
}

type csrfTokenResponse struct {
	Token string `json:"token"`
}

func (h *Handlers) CSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.guard.IssueCSRFToken(detach(r), clientIP(r))
	if err != nil {
		h.fail(w, r, "issue csrf token", err)
		return
	}
	h.metrics.csrfTokens.Inc()

	w.Header().Set("Cache-Control", "no-store, max-age=0")
	writeJSON(w, http.StatusOK, csrfTokenResponse{Token: token})
}

type checkEmailResponse struct {
	Available bool   `json:"available"`
	Message   string `json:"message"`
}

func (h *Handlers) CheckEmail(w http.ResponseWriter, r *http.Request) {
	res, err := h.registration.CheckEmail(detach(r), r.URL.Query().Get("email"))
	if err != nil {
		h.fail(w, r, "check email", err)
		return
	}
	writeJSON(w, http.StatusOK, checkEmailResponse{Available: res.Available, Message: res.Message})
}

type registerResponse struct {
	Message         string   `json:"message"`
	UserID          string   `json:"userId"`
	JWTToken        string   `json:"jwtToken,omitempty"`
	RefreshToken    string   `json:"refreshToken,omitempty"`
	TwoFactorSecret string   `json:"twoFactorSecret,omitempty"`
	TwoFactorURI    string   `json:"twoFactorUri,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var p validation.Payload
	if err := decode(r.Body, &p); err != nil {
		h.metrics.registrations.WithLabelValues(outcome(err)).Inc()
		writeError(w, err)
		return
	}

	res, err := h.registration.Register(detach(r), services.RegisterRequest{
		IP:          clientIP(r),
		CSRFToken:   r.Header.Get(common.CSRFTokenHeaderName),
		BearerToken: r.Header.Get(common.AuthorizationHeaderName),
		Payload:     p,
	})
	h.metrics.registrations.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		Message:         "User registered successfully",
		UserID:          res.UserID,
		JWTToken:        res.AccessToken,
		RefreshToken:    res.RefreshToken,
		TwoFactorSecret: res.TwoFactorSecret,
		TwoFactorURI:    res.TwoFactorURI,
		Warnings:        res.Warnings,
	})
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	err := h.verification.Verify(detach(r), q.Get("token"), q.Get("twoFAToken"))
	h.metrics.verifications.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		h.fail(w, r, "verify email", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Email verified successfully"})
}

func (h *Handlers) DocumentUploadURL(w http.ResponseWriter, r *http.Request) {
	ctx := detach(r)

	err := h.guard.CheckCSRF(ctx, clientIP(r), r.Header.Get(common.CSRFTokenHeaderName))
	if err != nil {
		h.metrics.uploadURLs.WithLabelValues(outcome(err)).Inc()
		h.fail(w, r, "document upload url", err)
		return
	}

	upload, err := h.documents.PresignUpload(ctx)
	h.metrics.uploadURLs.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		h.fail(w, r, "document upload url", err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := decode(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.tokens.RefreshToken(detach(r), req.RefreshToken)
	if err != nil {
		h.fail(w, r, "refresh token", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPairResponse{JWTToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
