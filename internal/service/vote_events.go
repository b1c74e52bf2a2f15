package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/photo-contest-api/internal/observability"
)

const voteEventBufferSize = 32

// VoteEvent announces a committed vote.
type VoteEvent struct {
	PhotoID    string    `json:"photoId"`
	Action     string    `json:"action"`
	Juror      string    `json:"juror"`
	TotalScore int       `json:"totalScore"`
	VoteCount  int       `json:"voteCount"`
	Average    string    `json:"average"`
	At         time.Time `json:"at"`
}

// VoteEventBus fans committed votes out to local subscribers and other instances.
type VoteEventBus interface {
	Publish(ctx context.Context, event VoteEvent)
	Subscribe() (<-chan VoteEvent, func())
	OnEvent(hook func(context.Context, VoteEvent))
	Start(ctx context.Context)
}

// VoteEventBusConfig selects the cross-instance transports. Both are optional.
type VoteEventBusConfig struct {
	Redis        *redis.Client
	RedisChannel string
	NATS         *nats.Conn
	NATSSubject  string
}

type voteEventBus struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string

	mu          sync.RWMutex
	subscribers map[chan VoteEvent]struct{}
	hooks       []func(context.Context, VoteEvent)
}

type voteEnvelope struct {
	Source string    `json:"source"`
	Event  VoteEvent `json:"event"`
}

// NewVoteEventBus constructs the vote event bus.
func NewVoteEventBus(cfg VoteEventBusConfig, logger zerolog.Logger) VoteEventBus {
	return &voteEventBus{
		redis:        cfg.Redis,
		redisChannel: cfg.RedisChannel,
		nats:         cfg.NATS,
		natsSubject:  cfg.NATSSubject,
		logger:       logger.With().Str("component", "vote_events").Logger(),
		nodeID:       uuid.NewString(),
		subscribers:  make(map[chan VoteEvent]struct{}),
	}
}

func (b *voteEventBus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		b.consumeNATS(ctx)
	}
}

func (b *voteEventBus) OnEvent(hook func(context.Context, VoteEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, hook)
}

func (b *voteEventBus) Publish(ctx context.Context, event VoteEvent) {
	b.dispatch(ctx, event)

	payload, err := json.Marshal(voteEnvelope{Source: b.nodeID, Event: event})
	if err != nil {
		b.logger.Warn().Err(err).Msg("failed to encode vote event")
		return
	}

	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish vote event to redis")
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			b.logger.Warn().Err(err).Msg("failed to publish vote event to nats")
		}
	}
}

func (b *voteEventBus) Subscribe() (<-chan VoteEvent, func()) {
	ch := make(chan VoteEvent, voteEventBufferSize)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	observability.LiveClients().Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			close(ch)
			b.mu.Unlock()
			observability.LiveClients().Dec()
		})
	}
	return ch, cancel
}

func (b *voteEventBus) dispatch(ctx context.Context, event VoteEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, hook := range b.hooks {
		hook(ctx, event)
	}
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *voteEventBus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Error().Err(err).Msg("vote event redis subscription closed")
			return
		}
		b.handleRemote(ctx, []byte(msg.Payload))
	}
}

func (b *voteEventBus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleRemote(ctx, msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats vote subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain vote event subscription")
		}
	}()
}

func (b *voteEventBus) handleRemote(ctx context.Context, payload []byte) {
	var envelope voteEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		b.logger.Warn().Err(err).Msg("invalid vote event payload")
		return
	}
	if envelope.Source == b.nodeID {
		return
	}
	b.dispatch(ctx, envelope.Event)
}
