package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/slack-go/slack"

	"github.com/moizaamir12/vsync-workflow-sub000/engine/emit"
)

// Envelope is the public shape a run event takes once it leaves the process:
// {type, runId, timestamp, ...}. SSE subscribers and the optional Redis
// pub/sub fan-out both receive this shape.
type Envelope struct {
	Type      string         `json:"type"`
	RunID     string         `json:"runId"`
	Timestamp time.Time      `json:"timestamp"`
	StepID    string         `json:"stepId,omitempty"`
	BlockID   string         `json:"blockId,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func envelopeFor(e emit.Event) Envelope {
	return Envelope{
		Type: e.Msg, RunID: e.RunID, Timestamp: e.Timestamp,
		StepID: e.StepID, BlockID: e.BlockID, Payload: e.Meta,
	}
}

// Broadcaster fans a run's events out to local SSE subscribers and,
// optionally, a Redis pub/sub channel (for a multi-instance deployment where
// subscribers may be attached to a different process than the one running
// the interpreter) and a Slack channel (ops visibility for failed runs).
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string][]chan Envelope

	redis     *redis.Client
	redisChan string

	slack        *slack.Client
	slackChannel string
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: map[string][]chan Envelope{}}
}

// WithRedis enables cross-instance fan-out over a Redis pub/sub channel.
func (b *Broadcaster) WithRedis(client *redis.Client, channel string) *Broadcaster {
	b.redis = client
	b.redisChan = channel
	return b
}

// WithSlack enables an ops notification sink: any event whose Meta carries
// an "error" key is also posted to channel.
func (b *Broadcaster) WithSlack(client *slack.Client, channel string) *Broadcaster {
	b.slack = client
	b.slackChannel = channel
	return b
}

// Subscribe registers a channel for runID's events. The returned func
// unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(runID string) (<-chan Envelope, func()) {
	ch := make(chan Envelope, 32)
	b.mu.Lock()
	b.subs[runID] = append(b.subs[runID], ch)
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[runID]
		for i, c := range subs {
			if c == ch {
				b.subs[runID] = append(subs[:i], subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
}

// Emit implements emit.Emitter so a Broadcaster can be wired directly as the
// Executor's emitter, fanning step-level events out to SSE subscribers
// alongside the run-level events Service publishes itself.
func (b *Broadcaster) Emit(e emit.Event) { b.Publish(e) }

// Publish delivers e to every local subscriber of e.RunID, then to Redis and
// Slack if configured. Publish never blocks on a slow subscriber: a full
// channel buffer drops the event rather than stalling the run.
func (b *Broadcaster) Publish(e emit.Event) {
	env := envelopeFor(e)

	b.mu.Lock()
	subs := append([]chan Envelope(nil), b.subs[e.RunID]...)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- env:
		default:
		}
	}

	if b.redis != nil {
		if data, err := json.Marshal(env); err == nil {
			_ = b.redis.Publish(context.Background(), b.redisChan, data).Err()
		}
	}

	if b.slack != nil && e.Meta != nil {
		if errMsg, ok := e.Meta["error"]; ok {
			_, _, _ = b.slack.PostMessage(b.slackChannel,
				slack.MsgOptionText("run "+e.RunID+" "+e.Msg+": "+toText(errMsg), false))
		}
	}
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, _ := json.Marshal(v)
	return string(data)
}
