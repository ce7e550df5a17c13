package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// DecisionEvent is the integration event emitted after a decision commits.
type DecisionEvent struct {
	EventID      string    `json:"event_id"`
	DecisionID   string    `json:"decision_id"`
	SubmissionID uint      `json:"submission_id"`
	LearnerID    uint      `json:"learner_id"`
	ActivityID   uint      `json:"activity_id"`
	Kind         string    `json:"kind"`
	Status       string    `json:"status"`
	Score        *int      `json:"score,omitempty"`
	TotalScore   int64     `json:"total_score"`
	Level        string    `json:"level"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DecisionPublisher delivers decision events to downstream consumers.
type DecisionPublisher interface {
	PublishDecision(ctx context.Context, event DecisionEvent) error
}

type natsDecisionPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSDecisionPublisher publishes decision events on subject. A nil
// connection yields a publisher that drops events.
func NewNATSDecisionPublisher(conn *nats.Conn, subject string) DecisionPublisher {
	return &natsDecisionPublisher{conn: conn, subject: subject}
}

func (p *natsDecisionPublisher) PublishDecision(ctx context.Context, event DecisionEvent) error {
	if p.conn == nil || p.subject == "" {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = payload
	msg.Header.Set(nats.MsgIdHdr, event.EventID)
	return p.conn.PublishMsg(msg)
}
