// Package slack delivers notifications through the Slack Web API.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	slackapi "github.com/slack-go/slack"
)

// Config captures the Slack settings the messenger needs.
type Config struct {
	BotToken string
	APIURL   string // Optional; overrides https://slack.com/api/
}

// Client implements notify.Messenger on top of the Slack Web API.
type Client struct {
	api *slackapi.Client
	log zerolog.Logger
}

// NewClient builds a Slack messenger. Callers should pass a validated config.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, errors.New("slack bot token is required")
	}

	var opts []slackapi.Option
	if apiURL := strings.TrimSpace(cfg.APIURL); apiURL != "" {
		if !strings.HasSuffix(apiURL, "/") {
			apiURL += "/"
		}
		opts = append(opts, slackapi.OptionAPIURL(apiURL))
	}

	return &Client{
		api: slackapi.New(token, opts...),
		log: log.With().Str("component", "slack_messenger").Logger(),
	}, nil
}

// SendText posts text to a channel or DM conversation.
func (c *Client) SendText(ctx context.Context, channelID, text string) error {
	_, ts, err := c.api.PostMessageContext(ctx, channelID, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message to %s: %w", channelID, err)
	}
	c.log.Debug().Str("channel_id", channelID).Str("ts", ts).Msg("Message posted")
	return nil
}

// SendDirectMessage opens (or reuses) the DM conversation with userID and posts text there.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	channel, _, _, err := c.api.OpenConversationContext(ctx, &slackapi.OpenConversationParameters{
		Users: []string{userID},
	})
	if err != nil {
		return fmt.Errorf("open conversation with %s: %w", userID, err)
	}
	if channel == nil || channel.ID == "" {
		return fmt.Errorf("open conversation with %s: empty channel", userID)
	}
	return c.SendText(ctx, channel.ID, text)
}

// SendFile uploads content as a file into channelID with text as the initial comment.
func (c *Client) SendFile(ctx context.Context, channelID, text string, content []byte, filename string) error {
	summary, err := c.api.UploadFileV2Context(ctx, slackapi.UploadFileV2Parameters{
		Channel:        channelID,
		Reader:         bytes.NewReader(content),
		FileSize:       len(content),
		Filename:       filename,
		Title:          filename,
		InitialComment: text,
	})
	if err != nil {
		return fmt.Errorf("upload %s to %s: %w", filename, channelID, err)
	}
	if summary != nil {
		c.log.Debug().Str("channel_id", channelID).Str("file_id", summary.ID).Msg("File uploaded")
	}
	return nil
}
