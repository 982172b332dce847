// Package metrics decorates a dispatch.Sender with Prometheus instrumentation.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinywideclouds/go-notification-bridge/pkg/dispatch"
)

const (
	median = 0.5
	p90    = 0.9
	p99    = 0.99

	medianError = 0.05
	p90Error    = 0.01
	p99Error    = 0.001

	maxAgeDuration = 5 * time.Minute
)

// Collectors holds the provider send metrics. Create it once per registry and
// share it between every Sender built over the process lifetime.
type Collectors struct {
	sendTotal    *prometheus.CounterVec
	sendDuration *prometheus.SummaryVec
}

func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		sendTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notification_bridge_send_total",
				Help: "Provider send attempts by addressing mode and status.",
			},
			[]string{"provider", "addressing", "status"},
		),
		sendDuration: prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "notification_bridge_send_duration_seconds",
				Help: "Provider send latency in seconds.",
				Objectives: map[float64]float64{
					median: medianError,
					p90:    p90Error,
					p99:    p99Error,
				},
				MaxAge: maxAgeDuration,
			},
			[]string{"provider", "status"},
		),
	}

	for _, collector := range []prometheus.Collector{c.sendTotal, c.sendDuration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Sender records a count and a latency observation for every send.
type Sender struct {
	next       dispatch.Sender
	name       string
	collectors *Collectors
}

func NewSender(next dispatch.Sender, name string, collectors *Collectors) *Sender {
	return &Sender{next: next, name: name, collectors: collectors}
}

func (s *Sender) Send(ctx context.Context, req *dispatch.NotificationRequest) (string, error) {
	start := time.Now()

	result, err := s.next.Send(ctx, req)

	status := string(dispatch.StatusSuccess)
	if err != nil {
		status = string(dispatch.StatusError)
	}
	addressing := "topic"
	if token, _ := req.Target(); token != "" {
		addressing = "token"
	}

	s.collectors.sendTotal.WithLabelValues(s.name, addressing, status).Inc()
	s.collectors.sendDuration.WithLabelValues(s.name, status).Observe(time.Since(start).Seconds())

	return result, err
}
