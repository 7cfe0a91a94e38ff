package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/redirect"
)

// HitPublisher publishes live redirect decisions to NATS JetStream.
type HitPublisher struct {
	js nats.JetStreamContext
}

// NewHitPublisher creates a new hit event publisher.
func NewHitPublisher(js nats.JetStreamContext) *HitPublisher {
	return &HitPublisher{js: js}
}

// Publish publishes one decision to the hit stream.
func (p *HitPublisher) Publish(domain, ip, userAgent string, decision redirect.Decision) error {
	data, err := json.Marshal(newHitEvent(domain, ip, userAgent, decision, time.Now()))
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.HitStreamSubject, data)
	return err
}

func newHitEvent(domain, ip, userAgent string, d redirect.Decision, at time.Time) model.HitEvent {
	decision := string(d.Type)
	if d.Reason != "" {
		decision = string(d.Reason)
	}
	return model.HitEvent{
		ID:         uuid.New().String(),
		Domain:     domain,
		Path:       d.Path,
		IP:         ip,
		UserAgent:  userAgent,
		Crawler:    string(d.Crawler),
		Decision:   decision,
		StatusCode: d.StatusCode,
		TargetURL:  d.TargetURL,
		Timestamp:  at,
	}
}

// EnsureHitStream creates the hit stream when it does not exist yet.
func EnsureHitStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.HitStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.HitStreamName,
		Subjects: []string{model.HitStreamSubject},
		MaxBytes: model.HitStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}
