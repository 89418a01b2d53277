package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// LogProvider is a fallback provider that logs emails instead of sending them.
type LogProvider struct {
	Logger *slog.Logger
}

// NewLogProvider creates a new log-only provider.
func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{Logger: logger}
}

// Name returns the provider name.
func (l *LogProvider) Name() string {
	return "log"
}

// Send logs the email message and returns a fake message ID. Attachment
// contents are never logged, only their names and sizes.
func (l *LogProvider) Send(ctx context.Context, msg Message) (SendResult, error) {
	fakeID := uuid.New().String()
	attachments := make([]string, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		attachments = append(attachments, fmt.Sprintf("%s (%d bytes)", attachment.Filename, len(attachment.Content)))
	}
	l.Logger.InfoContext(ctx, "mailer: email logged (not sent)",
		"provider", "log",
		"from", msg.From,
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"html_length", len(msg.HTML),
		"text_length", len(msg.Text),
		"attachments", strings.Join(attachments, ", "),
		"fake_message_id", fakeID,
	)
	if msg.Text != "" {
		l.Logger.DebugContext(ctx, "mailer: email text body", "text", msg.Text)
	}
	return SendResult{ProviderMessageID: fmt.Sprintf("log-%s", fakeID)}, nil
}
