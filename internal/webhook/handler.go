package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/consulevent-rohanchaudhari/Invoice-accelerator/internal/email"
)

// Ingester stages the attachments of one mail message for processing.
// Satisfied by email.IntakeService.
type Ingester interface {
	IngestMessage(ctx context.Context, messageID string) (*email.IntakeResult, error)
}

// Handler receives Microsoft Graph change notifications for the monitored
// mailbox. Graph expects the validation token echoed on subscription
// validation and a fast 2xx on deliveries; actual ingestion runs async.
type Handler struct {
	verifier *Verifier
	ingester Ingester
	logger   *zap.Logger
}

// NewHandler creates a webhook handler
func NewHandler(verifier *Verifier, ingester Ingester, logger *zap.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		ingester: ingester,
		logger:   logger,
	}
}

// notificationBatch is the Graph change-notification envelope
type notificationBatch struct {
	Value []notification `json:"value"`
}

type notification struct {
	SubscriptionID string           `json:"subscriptionId"`
	ChangeType     string           `json:"changeType"`
	ClientState    string           `json:"clientState"`
	Resource       string           `json:"resource"`
	ResourceData   notificationData `json:"resourceData"`
}

type notificationData struct {
	ID        string `json:"id"`
	ODataType string `json:"@odata.type"`
}

// Handle processes a Graph webhook POST
func (h *Handler) Handle(c *gin.Context) {
	// Subscription validation: echo the token back as text/plain
	if token := c.Query("validationToken"); token != "" {
		h.logger.Info("Webhook subscription validation")
		c.Data(http.StatusOK, "text/plain", []byte(token))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read webhook body", zap.Error(err))
		c.Status(http.StatusAccepted)
		return
	}

	if !h.verifier.VerifySignature(c.GetHeader("X-Webhook-Signature"), body) {
		h.logger.Warn("Webhook signature verification failed")
		c.Status(http.StatusAccepted)
		return
	}

	var batch notificationBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		h.logger.Error("Failed to parse webhook body", zap.Error(err))
		c.Status(http.StatusAccepted)
		return
	}

	for _, n := range batch.Value {
		if !h.verifier.VerifyClientState(n.ClientState) {
			h.logger.Warn("Notification with unexpected clientState",
				zap.String("subscription_id", n.SubscriptionID))
			continue
		}
		if !strings.EqualFold(n.ChangeType, "created") {
			continue
		}
		if n.ResourceData.ID == "" {
			continue
		}

		h.logger.Info("Received message notification",
			zap.String("message_id", n.ResourceData.ID),
			zap.String("resource", n.Resource))

		go h.ingest(n.ResourceData.ID)
	}

	// Always 202: Graph retries on non-2xx and disables flaky subscriptions
	c.Status(http.StatusAccepted)
}

func (h *Handler) ingest(messageID string) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic during message ingestion",
				zap.String("message_id", messageID),
				zap.Any("panic", r))
		}
	}()

	result, err := h.ingester.IngestMessage(context.Background(), messageID)
	if err != nil {
		h.logger.Error("Message ingestion failed",
			zap.String("message_id", messageID),
			zap.Error(err))
		return
	}

	h.logger.Info("Message ingestion completed",
		zap.String("message_id", messageID),
		zap.Int("processed", len(result.Processed)),
		zap.Int("rejected", len(result.Rejected)))
}
