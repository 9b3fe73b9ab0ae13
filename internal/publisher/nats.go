package publisher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"gtfs-segments/internal/indicators"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("gtfs-segments"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn().Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info().Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// SummaryMessage is published once per mode and service day.
type SummaryMessage struct {
	RunID      string             `json:"runId"`
	Feed       string             `json:"feed"`
	ComputedAt time.Time          `json:"computedAt"`
	Summary    indicators.Summary `json:"summary"`
}

// PublishSummary sends msg on <prefix>.<mode>.<date>.
func (p *NATSPublisher) PublishSummary(msg SummaryMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.publish(Subject(p.prefix, msg.Summary.Mode, msg.Summary.Date), b)
}

func (p *NATSPublisher) publish(subject string, b []byte) error {
	if p.logSubjects {
		log.Debug().Str("subject", subject).Int("bytes", len(b)).Msg("nats publish")
	}
	start := time.Now()
	err := p.nc.Publish(subject, b)
	if err == nil {
		err = p.nc.Flush()
	}
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// Subject appends tokens to prefix, sanitising each token. The prefix is a
// subject hierarchy of its own and keeps its dots.
func Subject(prefix string, tokens ...string) string {
	out := make([]string, 0, len(tokens)+1)
	if p := strings.Trim(prefix, ". \t"); p != "" {
		out = append(out, p)
	}
	for _, t := range tokens {
		out = append(out, subjectToken(t))
	}
	return strings.Join(out, ".")
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
