package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/instaphotobooth/booth-server/internal/email"
	apperrors "github.com/instaphotobooth/booth-server/internal/errors"
	"github.com/instaphotobooth/booth-server/internal/model"
	"github.com/instaphotobooth/booth-server/internal/service"
	"github.com/instaphotobooth/booth-server/internal/util"
)

// BoothHandler serves the kiosk-facing session endpoints.
type BoothHandler struct {
	sessions *service.SessionService
	mailer   email.Mailer
}

func NewBoothHandler(sessions *service.SessionService, mailer email.Mailer) *BoothHandler {
	return &BoothHandler{
		sessions: sessions,
		mailer:   mailer,
	}
}

func (h *BoothHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/activate", h.Activate)
	r.Post("/verify-purchase", h.VerifyPurchase)
	r.Get("/session", h.GetSession)
	r.Post("/design", h.SaveDesign)
	r.Post("/photos/email", h.EmailPhoto)

	return r
}

// POST /api/activate
func (h *BoothHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	session, err := h.sessions.Activate(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// POST /api/verify-purchase
//
// The success page polls this after returning from checkout. A 404 with
// RECORD_NOT_FOUND means webhook fulfillment has not landed yet and the
// client should retry.
func (h *BoothHandler) VerifyPurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CheckoutSessionID string `json:"checkoutSessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	session, err := h.sessions.VerifyAndActivate(r.Context(), req.CheckoutSessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// GET /api/session?code=
func (h *BoothHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	status, err := h.sessions.GetSession(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// POST /api/design
func (h *BoothHandler) SaveDesign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code         string              `json:"code"`
		DesignLayout *model.DesignLayout `json:"designLayout"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	if err := h.sessions.SaveDesign(r.Context(), req.Code, req.DesignLayout); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"designLayout": req.DesignLayout,
	})
}

// POST /api/photos/email
//
// The quota unit is consumed before the send: a failed delivery still
// counts, which keeps the check-and-increment atomic and the client's
// remaining display truthful.
func (h *BoothHandler) EmailPhoto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code      string `json:"code"`
		Email     string `json:"email"`
		ImageData string `json:"imageData"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}
	if req.Email == "" {
		writeError(w, apperrors.MissingRequired("email"))
		return
	}

	imageBytes, _, err := util.DecodeImageDataURL(req.ImageData)
	if err != nil {
		writeError(w, apperrors.InvalidInput("imageData", "must be a base64 JPEG or PNG data URL"))
		return
	}

	remaining, err := h.sessions.RequestEmailSend(r.Context(), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.mailer.SendPhoto(r.Context(), req.Email, imageBytes); err != nil {
		log.Error().Err(err).Str("code", util.MaskCode(service.NormalizeCode(req.Code))).
			Msg("failed to send photo email")
		writeError(w, apperrors.External("email delivery", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"remaining": remaining,
	})
}
