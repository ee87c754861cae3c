package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	"github.com/carebridge/securitycore/internal/models"
)

// AlertSender defines the interface for delivering alert notifications
type AlertSender interface {
	SendAlert(ctx context.Context, alert models.Alert) error
}

// AWSSESAlertSender delivers alert emails using AWS SES
type AWSSESAlertSender struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

// NewAWSSESAlertSender creates a new AWS SES alert sender
func NewAWSSESAlertSender(region, fromAddress, toAddress string, logger *slog.Logger) (*AWSSESAlertSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSSESAlertSender{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// SendAlert sends a single alert email to the operations address
func (s *AWSSESAlertSender) SendAlert(ctx context.Context, alert models.Alert) error {
	subject := fmt.Sprintf("[%s] Security alert: %s", alert.Severity, alert.Type)

	var details strings.Builder
	fmt.Fprintf(&details, "Type: %s\nSeverity: %s\n", alert.Type, alert.Severity)
	if alert.AccountID != nil {
		fmt.Fprintf(&details, "Account: %s\n", *alert.AccountID)
	}
	if alert.IPAddress != nil {
		fmt.Fprintf(&details, "Source IP: %s\n", *alert.IPAddress)
	}
	fmt.Fprintf(&details, "\n%s\n", alert.Description)

	textBody := fmt.Sprintf(`Security Alert

%s
This is an automated message from the security monitor. Review the security event stream for full context.
`, details.String())

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{s.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := s.sesClient.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("failed to send alert email via SES",
			slog.String("alert_type", alert.Type),
			slog.Any("error", err))
		return fmt.Errorf("failed to send alert email: %w", err)
	}

	s.logger.Info("alert email sent",
		slog.String("alert_type", alert.Type),
		slog.String("message_id", *result.MessageId))

	return nil
}

// AlertNotifier drains the alert channel and forwards HIGH severity
// alerts by email. Lower severities stay in the event stream only.
type AlertNotifier struct {
	sender AlertSender
	logger *slog.Logger
}

// NewAlertNotifier creates a new AlertNotifier
func NewAlertNotifier(sender AlertSender, logger *slog.Logger) *AlertNotifier {
	return &AlertNotifier{sender: sender, logger: logger}
}

// Run consumes alerts until the channel closes or the context ends.
// Intended to run in its own goroutine.
func (n *AlertNotifier) Run(ctx context.Context, alerts <-chan models.Alert) {
	for {
		select {
		case <-ctx.Done():
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			if alert.Severity != models.AlertSeverityHigh {
				continue
			}
			if err := n.sender.SendAlert(ctx, alert); err != nil {
				n.logger.Error("alert notification failed",
					slog.String("alert_type", alert.Type),
					slog.Any("error", err))
			}
		}
	}
}
