// backend/src/services/alert_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/yieldmap/backend/src/config"
	"github.com/username/yieldmap/backend/src/logger"
)

// NewAlertService picks the alert provider from configuration. With no
// provider configured, failures are only logged.
func NewAlertService() AlertService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Alert service will default to mock.")
		return &MockAlertService{}
	}

	provider := config.Cfg.AlertServiceProvider
	logger.L.Info("Initializing alert service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.AlertRecipient == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or AlertRecipient missing). Falling back to MockAlertService.")
			return &MockAlertService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunAlertService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
			recipient:   config.Cfg.AlertRecipient,
		}
	default:
		logger.L.Info("Defaulting to MockAlertService.")
		return &MockAlertService{}
	}
}

type MailgunAlertService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
	recipient   string
}

func (s *MailgunAlertService) NotifyRetrievalFailure(listingID, reason string) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)
	subject := fmt.Sprintf("Price history retrieval failed for listing %s", listingID)
	body := fmt.Sprintf(`A snapshot retrieval ended in a failure state.

Listing ID: %s
Reason: %s

The failed result is cached; restart the service or wait for cache expiry to retry.`, listingID, reason)

	message := s.mg.NewMessage(from, subject, body, s.recipient)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send retrieval failure alert via Mailgun", "error", err, "listingID", listingID, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Retrieval failure alert sent via Mailgun", "listingID", listingID, "id", id)
	return nil
}

// MockAlertService logs instead of sending. Used in development and tests.
type MockAlertService struct{}

func (s *MockAlertService) NotifyRetrievalFailure(listingID, reason string) error {
	logger.L.Info("[MockAlertService] Retrieval failure alert", "listingID", listingID, "reason", reason)
	return nil
}
