package handler

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"reviewstats.app/listener/internal/domain"
	"reviewstats.app/listener/internal/http/dto"
	"reviewstats.app/listener/internal/queue"
)

const maxWebhookBody = 4 << 20

// GerritWebhookHandler receives events from Gerrit's webhooks plugin and
// appends them, unchanged, to the event stream.
type GerritWebhookHandler struct {
	producer queue.Producer
	cfg      WebhookConfig
	received *prometheus.CounterVec
}

type WebhookConfig struct {
	// Secret is the shared token every delivery must present in TokenHeader.
	Secret      string
	TokenHeader string
	TraceHeader string
}

func NewGerritWebhookHandler(producer queue.Producer, cfg WebhookConfig, reg prometheus.Registerer) *GerritWebhookHandler {
	if cfg.TokenHeader == "" {
		cfg.TokenHeader = "X-Webhook-Token"
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reviewstats",
		Subsystem: "server",
		Name:      "webhooks_total",
		Help:      "Gerrit webhook deliveries, by event type and status code.",
	}, []string{"event_type", "status"})
	if reg != nil {
		reg.MustRegister(received)
	}
	return &GerritWebhookHandler{
		producer: producer,
		cfg:      cfg,
		received: received,
	}
}

func (h *GerritWebhookHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	token := c.GetHeader(h.cfg.TokenHeader)
	if token == "" {
		h.reject(c, "", http.StatusUnauthorized, "missing webhook token")
		return
	}
	if h.cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.Secret)) != 1 {
		h.reject(c, "", http.StatusUnauthorized, "invalid webhook token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		h.reject(c, "", http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxWebhookBody {
		h.reject(c, "", http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	var header dto.GerritEventHeader
	if err := json.Unmarshal(body, &header); err != nil {
		h.reject(c, "", http.StatusBadRequest, "invalid payload")
		return
	}
	if header.Type == "" {
		h.reject(c, "", http.StatusBadRequest, "missing event type")
		return
	}
	// error-event stops the worker; only the stream consumer may produce it.
	if header.Type == string(domain.KindError) {
		h.reject(c, header.Type, http.StatusBadRequest, "reserved event type")
		return
	}

	traceID := c.GetHeader(h.cfg.TraceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	msg := queue.EventMessage{
		EventType: header.Type,
		Payload:   body,
	}
	if traceID != "" {
		msg.TraceID = &traceID
	}

	id, err := h.producer.Enqueue(ctx, msg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to enqueue gerrit event", "error", err, "event_type", header.Type)
		h.reject(c, header.Type, http.StatusInternalServerError, "failed to enqueue event")
		return
	}

	h.received.WithLabelValues(header.Type, strconv.Itoa(http.StatusAccepted)).Inc()
	c.JSON(http.StatusAccepted, dto.GerritWebhookResponse{
		MessageID: id,
		EventType: header.Type,
	})
}

func (h *GerritWebhookHandler) reject(c *gin.Context, eventType string, status int, msg string) {
	h.received.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
	c.JSON(status, gin.H{"error": msg})
}
