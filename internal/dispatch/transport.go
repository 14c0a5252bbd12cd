package dispatch

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message is one outbound email as handed to a Transport.
type Message struct {
	ID        string // unique message identifier
	From      string
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	Body      string
	PlainText bool
}

// newMessage assigns a fresh identifier to an outbound message.
func newMessage(from string, to, cc, bcc []string, subject, body string, plainText bool) *Message {
	return &Message{
		ID:        uuid.New().String(),
		From:      from,
		To:        to,
		CC:        cc,
		BCC:       bcc,
		Subject:   subject,
		Body:      body,
		PlainText: plainText,
	}
}

// recipients returns every address the message is delivered to, including
// blind copies.
func (m *Message) recipients() []string {
	all := make([]string, 0, len(m.To)+len(m.CC)+len(m.BCC))
	all = append(all, m.To...)
	all = append(all, m.CC...)
	all = append(all, m.BCC...)
	return all
}

// Transport delivers a single message.
type Transport interface {
	SendEmail(ctx context.Context, msg *Message) error
}

// SMTPConfig configures the relay transport.
type SMTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SMTPTransport delivers messages through a relay host.
type SMTPTransport struct {
	addr string
	host string
}

// NewSMTPTransport creates a transport for the given relay.
func NewSMTPTransport(config SMTPConfig) *SMTPTransport {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	port := config.Port
	if port == 0 {
		port = 25
	}
	return &SMTPTransport{
		addr: fmt.Sprintf("%s:%d", host, port),
		host: host,
	}
}

// SendEmail composes the wire message and hands it to the relay. Bcc
// recipients appear in the envelope but never in the headers.
func (t *SMTPTransport) SendEmail(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	contentType := "text/html; charset=windows-1252"
	if msg.PlainText {
		contentType = "text/plain; charset=windows-1252"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", msg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", msg.ID, t.host)
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(t.addr, nil, msg.From, msg.recipients(), []byte(b.String())); err != nil {
		return fmt.Errorf("relay %s refused message %s: %w", t.addr, msg.ID, err)
	}
	return nil
}

// MockTransport records messages instead of delivering them. Used in
// tests and available as the "mock" transport type for local runs.
type MockTransport struct {
	mu       sync.Mutex
	messages []*Message

	// FailFor makes delivery fail for any message addressed to this
	// recipient.
	FailFor string
}

// NewMockTransport creates an empty recording transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// SendEmail records the message, failing if it targets FailFor.
func (t *MockTransport) SendEmail(_ context.Context, msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.FailFor != "" {
		for _, addr := range msg.recipients() {
			if addr == t.FailFor {
				return fmt.Errorf("mock delivery failure for %s", addr)
			}
		}
	}

	t.messages = append(t.messages, msg)
	return nil
}

// Messages returns a copy of everything recorded so far.
func (t *MockTransport) Messages() []*Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Message, len(t.messages))
	copy(out, t.messages)
	return out
}
