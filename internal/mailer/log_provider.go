package mailer

import (
	"context"
	"log/slog"
)

// LogProvider writes messages to the log instead of sending them. Used in
// development and when no provider is configured.
type LogProvider struct {
	fromEmail string
}

func NewLogProvider(fromEmail string) *LogProvider {
	return &LogProvider{fromEmail: fromEmail}
}

func (p *LogProvider) Send(ctx context.Context, msg *Message) error {
	slog.InfoContext(ctx, "email (log provider)",
		"component", "mailer",
		"from", p.fromEmail,
		"to", msg.To,
		"subject", msg.Subject,
		"text_bytes", len(msg.Text),
		"html_bytes", len(msg.HTML),
	)
	return nil
}
