// Package notify decides where and how job notifications are delivered.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DirectMessagePrefix marks direct-message conversation IDs.
	DirectMessagePrefix = "D"
	// ChannelNotFound is what the command front end reports when it could not resolve the channel.
	ChannelNotFound = "channel_not_found"

	attachmentPrefix = "inference_result_real_data_"
	attachmentLayout = "20060102_150405"
)

// ErrNoDestination is returned when neither a channel nor a user can be addressed.
var ErrNoDestination = errors.New("notify: no deliverable destination")

// Messenger is the notification transport.
type Messenger interface {
	SendText(ctx context.Context, channelID, text string) error
	SendDirectMessage(ctx context.Context, userID, text string) error
	SendFile(ctx context.Context, channelID, text string, content []byte, filename string) error
}

// TargetKind is inferred from a target's channel ID.
type TargetKind int

const (
	// Unresolved means the channel is absent or the lookup failed.
	Unresolved TargetKind = iota
	// DirectMessage is a DM conversation; it cannot carry attachments.
	DirectMessage
	// Channel is a regular channel.
	Channel
)

// String returns a human-readable name for the target kind.
func (k TargetKind) String() string {
	switch k {
	case DirectMessage:
		return "direct_message"
	case Channel:
		return "channel"
	default:
		return "unresolved"
	}
}

// Target is where a job's notifications go.
type Target struct {
	ChannelID      string
	ErrorChannelID string // Overrides ChannelID for error messages when set
	UserID         string
}

// Kind infers the destination kind from ChannelID.
func (t Target) Kind() TargetKind {
	switch {
	case t.ChannelID == "" || t.ChannelID == ChannelNotFound:
		return Unresolved
	case strings.HasPrefix(t.ChannelID, DirectMessagePrefix):
		return DirectMessage
	default:
		return Channel
	}
}

// forMessage applies the error channel override.
func (t Target) forMessage(msg Message) Target {
	if msg.IsError && t.ErrorChannelID != "" {
		t.ChannelID = t.ErrorChannelID
	}
	return t
}

// Message is one outbound notification.
type Message struct {
	Lead       string // Short text; the file comment for attachments
	Body       string // Report or detail text, may be empty
	Attachable bool   // Body is a full report that may be sent as a file
	IsError    bool
	CreatedAt  time.Time
}

// Text renders the message as a single inline text.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Lead
	}
	return m.Lead + "\n\n" + m.Body
}

// Filename returns the attachment name derived from the message time.
func (m Message) Filename() string {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return attachmentPrefix + ts.Format(attachmentLayout) + ".txt"
}

// Route describes how a message was delivered.
type Route string

const (
	RouteDirectMessage Route = "dm_channel_text"
	RouteUserFallback  Route = "user_dm_fallback"
	RouteChannelFile   Route = "channel_file"
	RouteChannelText   Route = "channel_text"
)

// Delivery is the outcome of routing one message.
type Delivery struct {
	Route       Route
	Destination string
}

// Router picks the destination and format of each message.
type Router struct {
	messenger    Messenger
	fallbackNote string
	log          zerolog.Logger
}

// NewRouter creates a router. fallbackNote is added to messages redirected to
// the user because the channel could not be resolved.
func NewRouter(messenger Messenger, fallbackNote string, log zerolog.Logger) *Router {
	return &Router{
		messenger:    messenger,
		fallbackNote: fallbackNote,
		log:          log.With().Str("component", "notification_router").Logger(),
	}
}

// Deliver sends msg to target. Exactly one messenger call is made per invocation.
func (r *Router) Deliver(ctx context.Context, target Target, msg Message) (Delivery, error) {
	target = target.forMessage(msg)

	var (
		delivery Delivery
		err      error
	)

	switch target.Kind() {
	case DirectMessage:
		// DM conversations cannot take files, so reports go inline.
		delivery = Delivery{Route: RouteDirectMessage, Destination: target.ChannelID}
		err = r.messenger.SendText(ctx, target.ChannelID, msg.Text())

	case Unresolved:
		if target.UserID == "" {
			return Delivery{}, fmt.Errorf("%w: channel %q and no user", ErrNoDestination, target.ChannelID)
		}
		r.log.Warn().
			Str("channel_id", target.ChannelID).
			Str("user_id", target.UserID).
			Msg("Channel unresolved, falling back to direct message")
		delivery = Delivery{Route: RouteUserFallback, Destination: target.UserID}
		err = r.messenger.SendDirectMessage(ctx, target.UserID, r.withFallbackNote(msg))

	default:
		if msg.Attachable && msg.Body != "" {
			delivery = Delivery{Route: RouteChannelFile, Destination: target.ChannelID}
			err = r.messenger.SendFile(ctx, target.ChannelID, msg.Lead, []byte(msg.Body), msg.Filename())
		} else {
			delivery = Delivery{Route: RouteChannelText, Destination: target.ChannelID}
			err = r.messenger.SendText(ctx, target.ChannelID, msg.Text())
		}
	}

	if err != nil {
		return delivery, fmt.Errorf("deliver via %s to %s: %w", delivery.Route, delivery.Destination, err)
	}

	r.log.Info().
		Str("route", string(delivery.Route)).
		Str("destination", delivery.Destination).
		Bool("error_message", msg.IsError).
		Msg("Notification delivered")
	return delivery, nil
}

func (r *Router) withFallbackNote(msg Message) string {
	if r.fallbackNote == "" {
		return msg.Text()
	}
	text := msg.Lead + "\n" + r.fallbackNote
	if msg.Body != "" {
		text += "\n\n" + msg.Body
	}
	return text
}
