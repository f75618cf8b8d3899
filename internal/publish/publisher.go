// Package publish runs the submit pipeline: derive identity material,
// authorize (signature or group proof), build the wire envelope, and hand
// off to the indexer. Each submit is one sequential flow; no partial
// external state exists before the final publish step.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zkchat/go-client/internal/identity"
	"zkchat/go-client/internal/indexer"
	"zkchat/go-client/internal/platform/ratelimiter"
	"zkchat/go-client/internal/zk"
	"zkchat/go-client/pkg/message"
)

var (
	ErrRateLimited     = errors.New("publish attempts are rate limited")
	ErrUnknownEnvelope = errors.New("unhandled envelope variant")
)

// API is the publish collaborator surface consumed by the pipeline.
type API interface {
	PublishEnvelope(ctx context.Context, req indexer.PublishRequest) (indexer.PublishReceipt, error)
}

type Publisher struct {
	prover  *zk.Prover
	api     API
	limiter *ratelimiter.MapLimiter
	log     *slog.Logger
	now     func() time.Time
}

type Option func(*Publisher)

func WithLimiter(l *ratelimiter.MapLimiter) Option {
	return func(p *Publisher) { p.limiter = l }
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

func NewPublisher(prover *zk.Prover, api API, log *slog.Logger, opts ...Option) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{
		prover: prover,
		api:    api,
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Receipt is the confirmed publish outcome.
type Receipt struct {
	MessageID string
	Timestamp time.Time
}

// Submit authorizes and publishes one envelope. Identity and proof errors
// abort the whole attempt; the caller decides whether to retry, always with
// fresh signal material so repeated signals cannot be correlated.
func (p *Publisher) Submit(ctx context.Context, id identity.Identity, env message.Envelope) (Receipt, error) {
	if !p.limiter.Allow(limiterKey(id), p.now()) {
		return Receipt{}, ErrRateLimited
	}

	signal := env.MessageID()
	auth, attempt, err := p.prover.Authorize(ctx, id, signal)
	if err != nil {
		return Receipt{}, err
	}

	req, err := wireRequest(env, creatorFor(id), auth)
	if err != nil {
		return Receipt{}, err
	}

	receipt, err := p.api.PublishEnvelope(ctx, req)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish envelope: %w", err)
	}
	p.prover.MarkPublished(attempt)
	p.log.Info("envelope published", "type", string(env.Type()), "kind", string(auth.Kind))

	return Receipt{
		MessageID: receipt.MessageID,
		Timestamp: time.UnixMilli(receipt.Timestamp),
	}, nil
}

// creatorFor maps each identity variant to the creator field: wallets post
// under their address, anonymous variants post with an empty creator. The
// switch is exhaustive on purpose.
func creatorFor(id identity.Identity) string {
	switch v := id.(type) {
	case identity.Wallet:
		return v.Address
	case identity.GroupMember:
		return ""
	case identity.DeterministicSeed:
		return ""
	default:
		return ""
	}
}

func wireRequest(env message.Envelope, creator string, auth zk.Authorization) (indexer.PublishRequest, error) {
	req := indexer.PublishRequest{
		Type:      string(env.Type()),
		Creator:   creator,
		MessageID: env.MessageID(),
		Proof:     auth,
	}
	switch m := env.(type) {
	case *message.Post:
		req.Subtype = string(m.Subtype)
		req.CreatedAt = m.CreatedAt.UnixMilli()
		req.Payload = m.Payload
	case *message.Moderation:
		req.Subtype = string(m.Subtype)
		req.CreatedAt = m.CreatedAt.UnixMilli()
		req.Payload = m.Payload
	case *message.Connection:
		req.Subtype = string(m.Subtype)
		req.CreatedAt = m.CreatedAt.UnixMilli()
		req.Payload = m.Payload
	case *message.Profile:
		req.Subtype = string(m.Subtype)
		req.CreatedAt = m.CreatedAt.UnixMilli()
		req.Payload = m.Payload
	default:
		return indexer.PublishRequest{}, fmt.Errorf("%w: %T", ErrUnknownEnvelope, env)
	}
	return req, nil
}

func limiterKey(id identity.Identity) string {
	switch v := id.(type) {
	case identity.Wallet:
		return "addr:" + v.Address
	case identity.GroupMember:
		return "group:" + v.GroupID
	case identity.DeterministicSeed:
		return "group:" + v.GroupID
	default:
		return ""
	}
}
