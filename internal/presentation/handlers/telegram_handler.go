package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/bimakw/token-radar/internal/infrastructure/telegram"
)

// SecretHeader carries the secret token Telegram echoes on webhook calls
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

const maxWebhookBody = 1 << 20

// TextIngester turns free text into registry candidates
type TextIngester interface {
	Ingest(ctx context.Context, source, text string) (int, error)
}

// TelegramHandler receives Bot API webhook updates
type TelegramHandler struct {
	ingester TextIngester
	channels telegram.ChannelFilter
	secret   string
	logger   *zap.Logger
}

// NewTelegramHandler creates a new webhook handler. An empty secret accepts
// every caller.
func NewTelegramHandler(ingester TextIngester, channels telegram.ChannelFilter, secret string, logger *zap.Logger) *TelegramHandler {
	return &TelegramHandler{
		ingester: ingester,
		channels: channels,
		secret:   secret,
		logger:   logger,
	}
}

// WebhookResponse reports how many tokens one update produced
type WebhookResponse struct {
	Data WebhookResult `json:"data"`
}

// WebhookResult is the payload of WebhookResponse
type WebhookResult struct {
	Tokens int `json:"tokens"`
}

// Webhook handles POST /api/v1/webhooks/telegram
func (h *TelegramHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			respondError(w, http.StatusUnauthorized, "invalid secret token")
			return
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid update payload")
		return
	}

	msg := update.Post()
	if msg == nil || msg.Content() == "" || !h.channels.Allows(msg.Chat) {
		// acknowledged so Telegram does not redeliver
		respondJSON(w, http.StatusOK, WebhookResponse{})
		return
	}

	n, err := h.ingester.Ingest(r.Context(), msg.Source(), msg.Content())
	if err != nil {
		h.logger.Error("Failed to ingest webhook message",
			zap.Int64("update_id", update.UpdateID),
			zap.String("source", msg.Source()),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "Failed to ingest message")
		return
	}

	respondJSON(w, http.StatusOK, WebhookResponse{Data: WebhookResult{Tokens: n}})
}
