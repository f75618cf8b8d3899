package zk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zkchat/go-client/internal/identity"
)

var (
	ErrMembershipNotFound = errors.New("identity is not a member of the group")
	ErrProofGeneration    = errors.New("proof generation failed")
	ErrUnknownIdentity    = errors.New("unhandled identity variant")
)

// AttemptState tracks one publish attempt through its lifecycle. Attempts
// are single-use: a failed attempt is abandoned and the caller decides
// whether to retry with fresh signal material.
type AttemptState string

const (
	StateIdle           AttemptState = "idle"
	StateProofRequested AttemptState = "proof_requested"
	StateProofReady     AttemptState = "proof_ready"
	StatePublished      AttemptState = "published"
	StateFailed         AttemptState = "failed"
)

type ProofKind string

const (
	ProofKindSignature ProofKind = "signature"
	ProofKindSemaphore ProofKind = "semaphore"
	ProofKindRLN       ProofKind = "rln"
)

// GroupService fetches Merkle inclusion proofs by (groupID, leaf).
// Absence of the leaf must surface as ErrMembershipNotFound.
type GroupService interface {
	MerkleProof(ctx context.Context, groupID, leafHex string) (MerkleProof, error)
}

// ProofInput is everything the proving backend needs. The external
// nullifier binds the proof to an epoch window; the signal is the message's
// canonical content hash.
type ProofInput struct {
	ExternalNullifier string
	Signal            string
	Nullifier         string
	Trapdoor          string
	Merkle            MerkleProof
}

// ProvingBackend wraps the trusted, opaque proving primitive. The returned
// blob is forwarded as-is; this package never inspects it.
type ProvingBackend interface {
	Kind() ProofKind
	Prove(ctx context.Context, in ProofInput) (json.RawMessage, error)
}

// Authorization is the artifact attached to an envelope: exactly one of a
// direct signature or a group proof.
type Authorization struct {
	Kind      ProofKind       `json:"kind"`
	Signature string          `json:"signature,omitempty"`
	Proof     json.RawMessage `json:"proof,omitempty"`
	GroupID   string          `json:"groupId,omitempty"`
	Epoch     string          `json:"epoch,omitempty"`
}

// Prover orchestrates proof generation for anonymous publishes and direct
// signatures for pseudonymous ones.
type Prover struct {
	groups      GroupService
	backend     ProvingBackend
	epochWindow time.Duration
	now         func() time.Time
	log         *slog.Logger
	metrics     Metrics
}

// Metrics receives pipeline counters; a nil-safe no-op implementation is
// used when observability is disabled.
type Metrics interface {
	ProofGenerated(kind string)
	ProofFailed(reason string)
}

type nopMetrics struct{}

func (nopMetrics) ProofGenerated(string) {}
func (nopMetrics) ProofFailed(string)    {}

type Option func(*Prover)

func WithEpochWindow(window time.Duration) Option {
	return func(p *Prover) { p.epochWindow = window }
}

func WithClock(now func() time.Time) Option {
	return func(p *Prover) { p.now = now }
}

func WithMetrics(m Metrics) Option {
	return func(p *Prover) {
		if m != nil {
			p.metrics = m
		}
	}
}

func NewProver(groups GroupService, backend ProvingBackend, log *slog.Logger, opts ...Option) *Prover {
	if log == nil {
		log = slog.Default()
	}
	p := &Prover{
		groups:      groups,
		backend:     backend,
		epochWindow: DefaultEpochWindow,
		now:         time.Now,
		log:         log,
		metrics:     nopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attempt is one sequential authorize pipeline. It holds no shared mutable
// state; concurrent attempts for different messages need no coordination.
type Attempt struct {
	state AttemptState
}

func (a *Attempt) State() AttemptState { return a.state }

// Authorize produces the authorization artifact for the given identity and
// signal. The switch over identity variants is exhaustive: wallets sign
// directly, group members prove membership, and anything else is an error.
func (p *Prover) Authorize(ctx context.Context, id identity.Identity, signalHex string) (Authorization, *Attempt, error) {
	attempt := &Attempt{state: StateIdle}
	switch v := id.(type) {
	case identity.Wallet:
		auth, err := p.signDirect(v, signalHex)
		if err != nil {
			attempt.state = StateFailed
			return Authorization{}, attempt, err
		}
		attempt.state = StateProofReady
		return auth, attempt, nil
	case identity.GroupMember:
		auth, err := p.proveMembership(ctx, attempt, v.GroupID, v.Zk, signalHex)
		return auth, attempt, err
	case identity.DeterministicSeed:
		auth, err := p.proveMembership(ctx, attempt, v.GroupID, v.Zk, signalHex)
		return auth, attempt, err
	default:
		attempt.state = StateFailed
		return Authorization{}, attempt, fmt.Errorf("%w: %T", ErrUnknownIdentity, id)
	}
}

// MarkPublished records the handoff to the publish collaborator, the only
// externally visible commit point of the pipeline.
func (p *Prover) MarkPublished(attempt *Attempt) {
	if attempt != nil && attempt.state == StateProofReady {
		attempt.state = StatePublished
	}
}

func (p *Prover) signDirect(w identity.Wallet, signalHex string) (Authorization, error) {
	sig, err := w.Key.SignHex(signalHex + w.Address)
	if err != nil {
		return Authorization{}, err
	}
	return Authorization{Kind: ProofKindSignature, Signature: sig}, nil
}

func (p *Prover) proveMembership(ctx context.Context, attempt *Attempt, groupID string, zk identity.ZkIdentity, signalHex string) (Authorization, error) {
	attempt.state = StateProofRequested

	proof, err := p.groups.MerkleProof(ctx, groupID, zk.Commitment)
	if err != nil {
		attempt.state = StateFailed
		if errors.Is(err, ErrMembershipNotFound) {
			p.metrics.ProofFailed("membership_not_found")
			// Terminal for this attempt: membership appears only after an
			// external indexing step, so an automatic retry cannot help.
			return Authorization{}, err
		}
		p.metrics.ProofFailed("group_service")
		return Authorization{}, fmt.Errorf("fetch merkle proof: %w", err)
	}

	if err := proof.Verify(); err != nil {
		attempt.state = StateFailed
		p.metrics.ProofFailed("merkle_mismatch")
		p.log.Warn("rejecting self-inconsistent merkle proof", "group", groupID)
		return Authorization{}, err
	}
	attempt.state = StateProofReady

	epoch := Epoch(p.now(), p.epochWindow)
	input := ProofInput{
		ExternalNullifier: ExternalNullifier(epoch),
		Signal:            signalHex,
		Nullifier:         zk.Nullifier,
		Trapdoor:          zk.Trapdoor,
		Merkle:            proof,
	}

	blob, err := p.backend.Prove(ctx, input)
	if err != nil {
		attempt.state = StateFailed
		p.metrics.ProofFailed("backend")
		return Authorization{}, fmt.Errorf("%w: %v", ErrProofGeneration, err)
	}

	p.metrics.ProofGenerated(string(p.backend.Kind()))
	return Authorization{
		Kind:    p.backend.Kind(),
		Proof:   blob,
		GroupID: groupID,
		Epoch:   epoch,
	}, nil
}
