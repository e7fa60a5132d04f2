package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentCall struct {
	method   string
	dest     string
	text     string
	content  []byte
	filename string
}

type fakeMessenger struct {
	calls []sentCall
	err   error
}

func (f *fakeMessenger) SendText(ctx context.Context, channelID, text string) error {
	f.calls = append(f.calls, sentCall{method: "text", dest: channelID, text: text})
	return f.err
}

func (f *fakeMessenger) SendDirectMessage(ctx context.Context, userID, text string) error {
	f.calls = append(f.calls, sentCall{method: "dm", dest: userID, text: text})
	return f.err
}

func (f *fakeMessenger) SendFile(ctx context.Context, channelID, text string, content []byte, filename string) error {
	f.calls = append(f.calls, sentCall{method: "file", dest: channelID, text: text, content: content, filename: filename})
	return f.err
}

const note = "(channel unavailable, sent as DM)"

func reportMessage() Message {
	return Message{
		Lead:       "✅ Inference finished",
		Body:       "REPORT\nBUY USDJPY 1000",
		Attachable: true,
		CreatedAt:  time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC),
	}
}

func TestTarget_Kind(t *testing.T) {
	tests := []struct {
		channel string
		want    TargetKind
	}{
		{"", Unresolved},
		{ChannelNotFound, Unresolved},
		{"D024BE91L", DirectMessage},
		{"C01234567", Channel},
		{"G01234567", Channel},
	}
	for _, tt := range tests {
		t.Run(tt.channel, func(t *testing.T) {
			assert.Equal(t, tt.want, Target{ChannelID: tt.channel}.Kind())
		})
	}
}

func TestRouter_DirectMessageChannelGetsInlineText(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())

	d, err := r.Deliver(context.Background(), Target{ChannelID: "D999", UserID: "U1"}, reportMessage())
	require.NoError(t, err)

	assert.Equal(t, RouteDirectMessage, d.Route)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "text", m.calls[0].method)
	assert.Equal(t, "D999", m.calls[0].dest)
	assert.Contains(t, m.calls[0].text, "BUY USDJPY 1000")
	assert.Contains(t, m.calls[0].text, "✅ Inference finished")
}

func TestRouter_ChannelNotFoundFallsBackToUser(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())

	d, err := r.Deliver(context.Background(), Target{ChannelID: ChannelNotFound, UserID: "U42"}, reportMessage())
	require.NoError(t, err)

	assert.Equal(t, RouteUserFallback, d.Route)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "dm", m.calls[0].method)
	assert.Equal(t, "U42", m.calls[0].dest)
	assert.Contains(t, m.calls[0].text, note)
	assert.Contains(t, m.calls[0].text, "BUY USDJPY 1000")
}

func TestRouter_EmptyChannelFallsBackToUser(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())

	_, err := r.Deliver(context.Background(), Target{UserID: "U42"}, Message{Lead: "hi"})
	require.NoError(t, err)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "dm", m.calls[0].method)
}

func TestRouter_NoDestination(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())

	_, err := r.Deliver(context.Background(), Target{ChannelID: ChannelNotFound}, reportMessage())
	assert.ErrorIs(t, err, ErrNoDestination)
	assert.Empty(t, m.calls)
}

func TestRouter_ChannelReportUploadedAsFile(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())

	d, err := r.Deliver(context.Background(), Target{ChannelID: "C777"}, reportMessage())
	require.NoError(t, err)

	assert.Equal(t, RouteChannelFile, d.Route)
	require.Len(t, m.calls, 1)
	call := m.calls[0]
	assert.Equal(t, "file", call.method)
	assert.Equal(t, "C777", call.dest)
	assert.Equal(t, "✅ Inference finished", call.text)
	assert.Equal(t, "REPORT\nBUY USDJPY 1000", string(call.content))
	assert.Equal(t, "inference_result_real_data_20240305_140709.txt", call.filename)
}

func TestRouter_PlainMessageToChannelIsText(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())

	d, err := r.Deliver(context.Background(), Target{ChannelID: "C777"}, Message{Lead: "started"})
	require.NoError(t, err)
	assert.Equal(t, RouteChannelText, d.Route)
	require.Len(t, m.calls, 1)
	assert.Equal(t, "started", m.calls[0].text)
}

func TestRouter_ErrorsPreferErrorChannel(t *testing.T) {
	m := &fakeMessenger{}
	r := NewRouter(m, note, zerolog.Nop())
	target := Target{ChannelID: "C1", ErrorChannelID: "C-ADMIN"}

	_, err := r.Deliver(context.Background(), target, Message{Lead: "❌ failed", IsError: true})
	require.NoError(t, err)
	_, err = r.Deliver(context.Background(), target, Message{Lead: "ok"})
	require.NoError(t, err)

	require.Len(t, m.calls, 2)
	assert.Equal(t, "C-ADMIN", m.calls[0].dest)
	assert.Equal(t, "C1", m.calls[1].dest)
}

func TestRouter_TransportErrorIsWrapped(t *testing.T) {
	boom := errors.New("rate limited")
	m := &fakeMessenger{err: boom}
	r := NewRouter(m, note, zerolog.Nop())

	d, err := r.Deliver(context.Background(), Target{ChannelID: "C1"}, Message{Lead: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, RouteChannelText, d.Route)
}

func TestMessage_Text(t *testing.T) {
	assert.Equal(t, "lead", Message{Lead: "lead"}.Text())
	assert.Equal(t, "lead\n\nbody", Message{Lead: "lead", Body: "body"}.Text())
}
