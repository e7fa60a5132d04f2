package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"

	"github.com/aristath/forexbot/internal/inference"
	"github.com/aristath/forexbot/internal/notify"
)

const replyTimeout = 10 * time.Second

// SlackHandlers serves the /inference slash command.
type SlackHandlers struct {
	service       InferenceService
	signingSecret string
	catalog       *inference.Catalog
	httpClient    *http.Client
	log           zerolog.Logger
}

// NewSlackHandlers creates slash command handlers. Requests are verified when
// signingSecret is set.
func NewSlackHandlers(service InferenceService, signingSecret string, catalog *inference.Catalog, log zerolog.Logger) *SlackHandlers {
	if catalog == nil {
		catalog = inference.CatalogFor("en")
	}
	return &SlackHandlers{
		service:       service,
		signingSecret: signingSecret,
		catalog:       catalog,
		httpClient:    &http.Client{Timeout: replyTimeout},
		log:           log.With().Str("component", "slack_handlers").Logger(),
	}
}

// HandleCommand acknowledges the slash command and submits the job. The
// "started" and "already running" replies go to the command's response_url.
// POST /slack/commands
func (h *SlackHandlers) HandleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := h.parse(r)
	if err != nil {
		h.log.Warn().Err(err).Msg("Rejected slash command")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	h.log.Info().
		Str("command", cmd.Command).
		Str("channel_id", cmd.ChannelID).
		Str("user_id", cmd.UserID).
		Msg("Slash command received")

	_, err = h.service.Submit(context.WithoutCancel(r.Context()), inference.Trigger{
		Kind:   inference.Interactive,
		Target: notify.Target{ChannelID: cmd.ChannelID, UserID: cmd.UserID},
		Text:   cmd.Text,
		Reply:  h.responder(cmd.ResponseURL),
	})
	if err != nil && !errors.Is(err, inference.ErrJobRunning) {
		h.log.Error().Err(err).Msg("Failed to submit inference job")
		writeJSON(h.log, w, http.StatusOK, &slack.Msg{
			ResponseType: "ephemeral",
			Text:         h.catalog.ErrorPrefix + h.catalog.ErrorText(inference.Classify(err.Error()), err.Error()),
		})
		return
	}

	// Empty 200 acknowledges the command; replies arrive via response_url.
	w.WriteHeader(http.StatusOK)
}

func (h *SlackHandlers) parse(r *http.Request) (slack.SlashCommand, error) {
	if h.signingSecret == "" {
		return slack.SlashCommandParse(r)
	}

	verifier, err := slack.NewSecretsVerifier(r.Header, h.signingSecret)
	if err != nil {
		return slack.SlashCommand{}, err
	}
	r.Body = io.NopCloser(io.TeeReader(r.Body, &verifier))

	cmd, err := slack.SlashCommandParse(r)
	if err != nil {
		return slack.SlashCommand{}, err
	}
	if err := verifier.Ensure(); err != nil {
		return slack.SlashCommand{}, err
	}
	return cmd, nil
}

// responder posts acknowledgements to a slash command's response_url.
func (h *SlackHandlers) responder(responseURL string) inference.ReplyFunc {
	if responseURL == "" {
		return nil
	}
	return func(text string, ephemeral bool) error {
		responseType := "in_channel"
		if ephemeral {
			responseType = "ephemeral"
		}

		ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()

		return slack.PostWebhookCustomHTTPContext(ctx, responseURL, h.httpClient, &slack.WebhookMessage{
			Text:         text,
			ResponseType: responseType,
		})
	}
}
