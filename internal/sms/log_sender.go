package sms

import (
	"context"

	"go.uber.org/zap"

	"github.com/entrelaunch/platform/pkg/logger"
)

// LogSender writes outbound messages to the application log instead of a
// gateway. Used in development and when SMS delivery is disabled.
type LogSender struct{}

// NewLogSender constructs a log-only sender.
func NewLogSender() *LogSender { return &LogSender{} }

// Send records the message in the log and reports success.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	logger.WithModule("sms").Info("outbound message",
		zap.String("to", msg.To),
		zap.Int("length", len(msg.Body)),
	)
	return nil
}
