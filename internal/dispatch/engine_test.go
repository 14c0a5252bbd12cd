package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/busybox42/lettera/internal/letter"
)

func sendRequest() *letter.SendRequest {
	content := "Your claim has been approved."
	subject := "Claim approved"
	return &letter.SendRequest{
		Letter: &letter.Letter{
			Content:   &content,
			PlainText: true,
			EmailInfo: &letter.EmailInfo{
				Subject: &subject,
				From:    "claims@example.com",
				To:      []string{"alice@example.com", "bob@example.com"},
				CC:      []string{"agent@example.com"},
			},
		},
		MetaData: &letter.SendMetaData{
			DebugRecipients:       []string{"dev@example.com"},
			DefaultBCCRecipients:  []string{"archive@example.com"},
			ProdSupportRecipients: []string{"support@example.com"},
		},
	}
}

func TestParseSendLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want SendLevel
	}{
		{"debug", Debug},
		{"log", Log},
		{"prod", Prod},
	} {
		got, err := ParseSendLevel(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.in, got.String())
	}

	_, err := ParseSendLevel("staging")
	assert.Error(t, err)
}

func TestDebugSend(t *testing.T) {
	ctx := context.Background()

	t.Run("Reroutes to debug recipients", func(t *testing.T) {
		transport := NewMockTransport()
		engine := NewEngine(Debug, transport, nil)

		require.NoError(t, engine.Send(ctx, sendRequest()))

		msgs := transport.Messages()
		require.Len(t, msgs, 1)

		msg := msgs[0]
		assert.Equal(t, []string{"dev@example.com"}, msg.To)
		assert.Empty(t, msg.CC)
		assert.Empty(t, msg.BCC)
		assert.NotEmpty(t, msg.ID)

		assert.True(t, strings.HasPrefix(msg.Subject, "[TEST] "), "subject carries the test marker")
		assert.Contains(t, msg.Body, "alice@example.com", "trailer names the intended recipients")
		assert.Contains(t, msg.Body, "agent@example.com")
	})

	t.Run("Empty debug list rejects before delivery", func(t *testing.T) {
		transport := NewMockTransport()
		engine := NewEngine(Debug, transport, nil)

		req := sendRequest()
		req.MetaData.DebugRecipients = nil

		err := engine.Send(ctx, req)
		assert.ErrorIs(t, err, letter.ErrDispatchRejected)
		assert.Empty(t, transport.Messages(), "nothing reached the transport")
	})

	t.Run("Missing metadata rejects before delivery", func(t *testing.T) {
		transport := NewMockTransport()
		engine := NewEngine(Debug, transport, nil)

		req := sendRequest()
		req.MetaData = nil

		err := engine.Send(ctx, req)
		assert.ErrorIs(t, err, letter.ErrDispatchRejected)
		assert.Empty(t, transport.Messages())
	})

	t.Run("Invalid debug recipient rejects before delivery", func(t *testing.T) {
		transport := NewMockTransport()
		engine := NewEngine(Debug, transport, nil)

		req := sendRequest()
		req.MetaData.DebugRecipients = []string{"dev@example.com", "not-an-address"}

		err := engine.Send(ctx, req)
		assert.ErrorIs(t, err, letter.ErrDispatchRejected)
		assert.Empty(t, transport.Messages())
	})
}

func TestLogSend(t *testing.T) {
	transport := NewMockTransport()
	engine := NewEngine(Log, transport, nil)

	require.NoError(t, engine.Send(context.Background(), sendRequest()))
	assert.Empty(t, transport.Messages(), "log level never delivers")
}

func TestProdSend(t *testing.T) {
	ctx := context.Background()

	t.Run("One copy per to-address plus archive copy", func(t *testing.T) {
		transport := NewMockTransport()
		engine := NewEngine(Prod, transport, nil)

		require.NoError(t, engine.Send(ctx, sendRequest()))

		msgs := transport.Messages()
		require.Len(t, msgs, 3)

		var toCopies, bccOnly int
		for _, msg := range msgs {
			switch {
			case len(msg.To) == 1:
				toCopies++
			case len(msg.To) == 0 && len(msg.BCC) == 1:
				bccOnly++
				assert.Equal(t, "archive@example.com", msg.BCC[0])
			}
			assert.Equal(t, "Claim approved", msg.Subject)
			assert.Equal(t, "Your claim has been approved.", msg.Body)
		}
		assert.Equal(t, 2, toCopies)
		assert.Equal(t, 1, bccOnly)
	})

	t.Run("Delivery failure notifies support and surfaces the error", func(t *testing.T) {
		transport := NewMockTransport()
		transport.FailFor = "bob@example.com"
		engine := NewEngine(Prod, transport, nil)

		err := engine.Send(ctx, sendRequest())
		require.Error(t, err)

		// The support notice goes out asynchronously
		assert.Eventually(t, func() bool {
			for _, msg := range transport.Messages() {
				if len(msg.To) == 1 && msg.To[0] == "support@example.com" {
					return strings.Contains(msg.Body, "failed to send")
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("No metadata still delivers to real recipients", func(t *testing.T) {
		transport := NewMockTransport()
		engine := NewEngine(Prod, transport, nil)

		req := sendRequest()
		req.MetaData = nil

		require.NoError(t, engine.Send(ctx, req))
		assert.Len(t, transport.Messages(), 2)
	})
}
