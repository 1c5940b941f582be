package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	billingapp "utility-billing/internal/billing/application"
	"utility-billing/internal/observability/logging"
	"utility-billing/internal/observability/metrics"
)

// Clock provides time for deduplication.
type Clock interface {
	Now() time.Time
}

// Notifier renders anomaly events and sends them through a channel. Delivery
// failures are logged and counted, never returned to the billing flow.
type Notifier struct {
	channel        Channel
	template       *Template
	clock          Clock
	logger         *zap.Logger
	dedupeWindow   time.Duration
	requestTimeout time.Duration
	mu             sync.Mutex
	sent           map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		n.logger = logging.OrNop(logger)
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithRequestTimeout bounds each delivery.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// NewNotifier constructs an anomaly notifier.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("anomaly notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		logger:         zap.NewNop(),
		requestTimeout: 5 * time.Second,
		sent:           make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements application.AnomalyNotifier.
func (n *Notifier) Notify(ctx context.Context, event billingapp.AnomalyEvent) {
	if n == nil || n.channel == nil {
		return
	}
	content, err := n.template.Render(buildTemplateData(event))
	if err != nil {
		n.logger.Warn("anomaly notification render failed", zap.Error(err))
		metrics.IncNotify(metrics.ResultError)
		return
	}
	hash := hashContent(content)
	if !n.shouldSend(hash) {
		return
	}
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	if err := n.channel.Send(ctx, content); err != nil {
		n.logger.Warn("anomaly notification failed",
			zap.Int64("customer_id", event.Anomaly.CustomerID),
			zap.Int64("reading_id", event.Anomaly.ReadingID),
			zap.Error(err),
		)
		metrics.IncNotify(metrics.ResultError)
		return
	}
	n.markSent(hash)
	metrics.IncNotify(metrics.ResultSuccess)
}

func buildTemplateData(event billingapp.AnomalyEvent) TemplateData {
	customer := event.Customer.Name
	if customer == "" {
		customer = strconv.FormatInt(event.Anomaly.CustomerID, 10)
	}
	meter := event.Meter.Number
	if meter == "" {
		meter = strconv.FormatInt(event.Anomaly.MeterID, 10)
	}
	return TemplateData{
		Customer:   customer,
		CustomerID: event.Anomaly.CustomerID,
		Meter:      meter,
		MeterID:    event.Anomaly.MeterID,
		ReadingID:  event.Anomaly.ReadingID,
		KWh:        formatFloat(event.Anomaly.KWh),
		Average:    formatFloat(event.Anomaly.Average),
		Lower:      formatFloat(event.Band.Lower),
		Upper:      formatFloat(event.Band.Upper),
		Date:       event.Anomaly.Date(),
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func (n *Notifier) shouldSend(hash string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	at, ok := n.sent[hash]
	return !ok || n.clock.Now().Sub(at) >= n.dedupeWindow
}

func (n *Notifier) markSent(hash string) {
	if n.dedupeWindow <= 0 {
		return
	}
	n.mu.Lock()
	n.sent[hash] = n.clock.Now()
	n.mu.Unlock()
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
