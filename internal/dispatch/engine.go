package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/busybox42/lettera/internal/letter"
)

// debugMarker prefixes the subject of rerouted test sends.
const debugMarker = "[TEST] "

// deliveryConcurrency bounds the production fan-out.
const deliveryConcurrency = 4

// Engine turns a send request into zero or more deliveries according to
// the environment's send level.
type Engine struct {
	level     SendLevel
	transport Transport
	logger    *slog.Logger
	metrics   *Metrics
}

// NewEngine creates a dispatch engine fixed at the given send level.
func NewEngine(level SendLevel, transport Transport, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default().With("component", "dispatch")
	}
	return &Engine{
		level:     level,
		transport: transport,
		logger:    logger,
		metrics:   GetMetrics(),
	}
}

// Level returns the engine's send level.
func (e *Engine) Level() SendLevel {
	return e.level
}

// Send dispatches the request at the engine's send level. The request is
// assumed to have passed send validation; the debug recipient gate is
// still enforced here because a bad debug list must never fall through to
// real delivery.
func (e *Engine) Send(ctx context.Context, req *letter.SendRequest) error {
	e.metrics.SendRequests.WithLabelValues(e.level.String()).Inc()

	switch e.level {
	case Debug:
		return e.sendDebug(ctx, req)
	case Log:
		e.logSend(req)
		return nil
	case Prod:
		return e.sendProd(ctx, req)
	default:
		return fmt.Errorf("unknown send level %d", int(e.level))
	}
}

// sendDebug reroutes the whole send to the debug recipients. The subject
// is marked and the body gains a trailer naming the recipients the
// message would have gone to.
func (e *Engine) sendDebug(ctx context.Context, req *letter.SendRequest) error {
	debug := debugRecipients(req)
	if len(debug) == 0 {
		e.metrics.SendRejected.Inc()
		return fmt.Errorf("no debug recipients configured: %w", letter.ErrDispatchRejected)
	}
	for _, addr := range debug {
		if !validAddress(addr) {
			e.metrics.SendRejected.Inc()
			return fmt.Errorf("invalid debug recipient %q: %w", addr, letter.ErrDispatchRejected)
		}
	}

	info := req.Letter.EmailInfo
	msg := newMessage(
		info.From,
		debug,
		nil,
		nil,
		debugMarker+req.Letter.SubjectString(),
		req.Letter.ContentString()+debugTrailer(info),
		req.Letter.PlainText,
	)

	e.logger.Info("rerouting send to debug recipients",
		"message_id", msg.ID,
		"debug_recipients", len(debug),
		"intended_to", len(info.To),
	)

	return e.deliver(ctx, msg)
}

// logSend records the send without delivering anything.
func (e *Engine) logSend(req *letter.SendRequest) {
	info := req.Letter.EmailInfo
	e.logger.Info("send suppressed at log level",
		"from", info.From,
		"to", len(info.To),
		"cc", len(info.CC),
		"bcc", len(info.BCC),
		"subject", req.Letter.SubjectString(),
	)
}

// sendProd delivers to the real recipients: one copy per to-address, the
// cc and bcc lists riding on the first copy, plus one bcc-only copy per
// default-bcc recipient so a record of the send lands in a mailbox.
func (e *Engine) sendProd(ctx context.Context, req *letter.SendRequest) error {
	info := req.Letter.EmailInfo
	subject := req.Letter.SubjectString()
	body := req.Letter.ContentString()

	var messages []*Message
	for i, addr := range info.To {
		var cc, bcc []string
		if i == 0 {
			cc, bcc = info.CC, info.BCC
		}
		messages = append(messages, newMessage(info.From, []string{addr}, cc, bcc, subject, body, req.Letter.PlainText))
	}
	for _, addr := range defaultBCCRecipients(req) {
		messages = append(messages, newMessage(info.From, nil, nil, []string{addr}, subject, body, req.Letter.PlainText))
	}

	var g errgroup.Group
	g.SetLimit(deliveryConcurrency)
	for _, msg := range messages {
		msg := msg
		g.Go(func() error {
			return e.deliver(ctx, msg)
		})
	}

	if err := g.Wait(); err != nil {
		e.notifySupport(req, err)
		return err
	}
	return nil
}

// deliver hands one message to the transport, tracking metrics.
func (e *Engine) deliver(ctx context.Context, msg *Message) error {
	e.metrics.DeliveryAttempts.Inc()
	start := time.Now()

	err := e.transport.SendEmail(ctx, msg)
	e.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.DeliveryFailures.Inc()
		e.logger.Error("delivery failed", "message_id", msg.ID, "error", err)
		return err
	}

	e.logger.Debug("message delivered", "message_id", msg.ID, "recipients", len(msg.recipients()))
	return nil
}

// notifySupport tells production support about a failed send. The notice
// goes out in the background; its own failure only gets logged so the
// caller still sees the original delivery error.
func (e *Engine) notifySupport(req *letter.SendRequest, cause error) {
	support := prodSupportRecipients(req)
	if len(support) == 0 {
		return
	}

	info := req.Letter.EmailInfo
	body := fmt.Sprintf(
		"A letter failed to send.\r\n\r\nSubject: %s\r\nFrom: %s\r\nTo: %s\r\nError: %v\r\n",
		req.Letter.SubjectString(), info.From, strings.Join(info.To, ", "), cause,
	)
	notice := newMessage(info.From, support, nil, nil, "Letter delivery failure", body, true)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.transport.SendEmail(ctx, notice); err != nil {
			e.logger.Error("failed to notify production support", "message_id", notice.ID, "error", err)
			return
		}
		e.metrics.SupportNotices.Inc()
	}()
}

// debugTrailer describes where the message would have gone.
func debugTrailer(info *letter.EmailInfo) string {
	var b strings.Builder
	b.WriteString("\r\n\r\n--- test send: intended recipients ---\r\n")
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(info.To, ", "))
	if len(info.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(info.CC, ", "))
	}
	if len(info.BCC) > 0 {
		fmt.Fprintf(&b, "Bcc: %s\r\n", strings.Join(info.BCC, ", "))
	}
	return b.String()
}

func debugRecipients(req *letter.SendRequest) []string {
	if req.MetaData == nil {
		return nil
	}
	return req.MetaData.DebugRecipients
}

func defaultBCCRecipients(req *letter.SendRequest) []string {
	if req.MetaData == nil {
		return nil
	}
	return req.MetaData.DefaultBCCRecipients
}

func prodSupportRecipients(req *letter.SendRequest) []string {
	if req.MetaData == nil {
		return nil
	}
	return req.MetaData.ProdSupportRecipients
}

func validAddress(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
