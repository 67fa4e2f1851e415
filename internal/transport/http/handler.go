package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/cwrk-planet/realtime-service/internal/domain"
	"github.com/cwrk-planet/realtime-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
)

const maxEnvelopeBytes = 1 << 20

type PresenceReader interface {
	IsOnline(userID string) bool
	Online() []string
}

type Notifier interface {
	Notify(ctx context.Context, env domain.Envelope) (bool, error)
}

type Handler struct {
	presence PresenceReader
	notifier Notifier
}

func NewHandler(presence PresenceReader, notifier Notifier) *Handler {
	return &Handler{presence: presence, notifier: notifier}
}

type presenceResponse struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

// GET /presence/{userID}
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userID"))
	if userID == "" {
		httputil.Error(w, http.StatusBadRequest, "missing user id")
		return
	}

	httputil.JSON(w, http.StatusOK, presenceResponse{UserID: userID, Online: h.presence.IsOnline(userID)})
}

// GET /presence
func (h *Handler) ListOnline(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string][]string{"users": h.presence.Online()})
}

type notifyResponse struct {
	Delivered bool `json:"delivered"`
}

// POST /internal/notify - вызывается слоем хранения после записи сообщения.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var env domain.Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&env); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	delivered, err := h.notifier.Notify(r.Context(), env)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEnvelope) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	httputil.JSON(w, http.StatusOK, notifyResponse{Delivered: delivered})
}
