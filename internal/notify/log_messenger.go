package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// LogMessenger writes notifications to the log. It stands in for Slack when no
// bot token is configured.
type LogMessenger struct {
	log zerolog.Logger
}

// NewLogMessenger creates a log-only messenger.
func NewLogMessenger(log zerolog.Logger) *LogMessenger {
	return &LogMessenger{log: log.With().Str("component", "log_messenger").Logger()}
}

// SendText implements Messenger.
func (m *LogMessenger) SendText(ctx context.Context, channelID, text string) error {
	m.log.Info().Str("channel_id", channelID).Str("text", text).Msg("send text")
	return nil
}

// SendDirectMessage implements Messenger.
func (m *LogMessenger) SendDirectMessage(ctx context.Context, userID, text string) error {
	m.log.Info().Str("user_id", userID).Str("text", text).Msg("send direct message")
	return nil
}

// SendFile implements Messenger.
func (m *LogMessenger) SendFile(ctx context.Context, channelID, text string, content []byte, filename string) error {
	m.log.Info().
		Str("channel_id", channelID).
		Str("text", text).
		Str("filename", filename).
		Int("bytes", len(content)).
		Msg("send file")
	return nil
}
