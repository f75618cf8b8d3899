package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"zkchat/go-client/internal/identity"
	"zkchat/go-client/internal/indexer"
	"zkchat/go-client/internal/platform/ratelimiter"
	"zkchat/go-client/internal/zk"
	"zkchat/go-client/pkg/message"
)

type fakeGroups struct {
	proof zk.MerkleProof
	err   error
}

func (f *fakeGroups) MerkleProof(_ context.Context, groupID, leafHex string) (zk.MerkleProof, error) {
	if f.err != nil {
		return zk.MerkleProof{}, f.err
	}
	return f.proof, nil
}

type fakeBackend struct{}

func (fakeBackend) Kind() zk.ProofKind { return zk.ProofKindSemaphore }

func (fakeBackend) Prove(context.Context, zk.ProofInput) (json.RawMessage, error) {
	return json.RawMessage(`{"pi_a":"stub"}`), nil
}

type fakeIndexer struct {
	requests []indexer.PublishRequest
	err      error
}

func (f *fakeIndexer) PublishEnvelope(_ context.Context, req indexer.PublishRequest) (indexer.PublishReceipt, error) {
	if f.err != nil {
		return indexer.PublishReceipt{}, f.err
	}
	f.requests = append(f.requests, req)
	return indexer.PublishReceipt{MessageID: req.MessageID, Timestamp: req.CreatedAt}, nil
}

func testWallet(t *testing.T) identity.Wallet {
	t.Helper()
	key, err := identity.ImportSigningKeyHex("4444444444444444444444444444444444444444444444444444444444444444")
	if err != nil {
		t.Fatalf("ImportSigningKeyHex: %v", err)
	}
	return identity.Wallet{Address: key.Address(), Key: key}
}

// proofForLeaf is a zero-depth inclusion proof: root == leaf.
func proofForLeaf(leafHex, group string) zk.MerkleProof {
	return zk.MerkleProof{Root: leafHex, Leaf: leafHex, Group: group}
}

func TestSubmitWallet(t *testing.T) {
	wallet := testWallet(t)
	api := &fakeIndexer{}
	prover := zk.NewProver(&fakeGroups{}, fakeBackend{}, nil)
	publisher := NewPublisher(prover, api, nil)

	post, err := message.NewPost(message.PostSubtypeDefault, wallet.Address, message.PostPayload{Content: "hello"}, time.UnixMilli(1700000000000))
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	receipt, err := publisher.Submit(context.Background(), wallet, post)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if receipt.MessageID != post.MessageID() {
		t.Fatalf("receipt id = %s, want %s", receipt.MessageID, post.MessageID())
	}
	if len(api.requests) != 1 {
		t.Fatalf("published %d requests, want 1", len(api.requests))
	}
	req := api.requests[0]
	if req.Type != "POST" || req.Creator != wallet.Address {
		t.Fatalf("request = %+v", req)
	}
	if req.Proof.Kind != zk.ProofKindSignature || req.Proof.Signature == "" {
		t.Fatalf("proof = %+v", req.Proof)
	}
}

func TestSubmitGroupMemberHasEmptyCreator(t *testing.T) {
	key, err := identity.ImportSigningKeyHex("5555555555555555555555555555555555555555555555555555555555555555")
	if err != nil {
		t.Fatalf("ImportSigningKeyHex: %v", err)
	}
	zkID, err := identity.DeriveZkIdentity(key)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	member := identity.GroupMember{GroupID: "zksocial_all", Zk: zkID}

	api := &fakeIndexer{}
	prover := zk.NewProver(&fakeGroups{proof: proofForLeaf(zkID.Commitment, "zksocial_all")}, fakeBackend{}, nil)
	publisher := NewPublisher(prover, api, nil)

	post, err := message.NewPost(message.PostSubtypeDefault, "", message.PostPayload{Content: "anon"}, time.UnixMilli(1700000000000))
	if err != nil {
		t.Fatalf("NewPost: %v", err)
	}
	if _, err := publisher.Submit(context.Background(), member, post); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	req := api.requests[0]
	if req.Creator != "" {
		t.Fatalf("anonymous creator = %q, want empty", req.Creator)
	}
	if req.Proof.Kind != zk.ProofKindSemaphore || req.Proof.GroupID != "zksocial_all" {
		t.Fatalf("proof = %+v", req.Proof)
	}
	if req.Proof.Epoch == "" {
		t.Fatal("proof is missing its epoch")
	}
}

func TestSubmitRejectsNonMember(t *testing.T) {
	key, _ := identity.ImportSigningKeyHex("6666666666666666666666666666666666666666666666666666666666666666")
	zkID, err := identity.DeriveZkIdentity(key)
	if err != nil {
		t.Fatalf("DeriveZkIdentity: %v", err)
	}
	api := &fakeIndexer{}
	prover := zk.NewProver(&fakeGroups{err: zk.ErrMembershipNotFound}, fakeBackend{}, nil)
	publisher := NewPublisher(prover, api, nil)

	post, _ := message.NewPost(message.PostSubtypeDefault, "", message.PostPayload{Content: "x"}, time.UnixMilli(1))
	_, err = publisher.Submit(context.Background(), identity.GroupMember{GroupID: "g", Zk: zkID}, post)
	if !errors.Is(err, zk.ErrMembershipNotFound) {
		t.Fatalf("want ErrMembershipNotFound, got %v", err)
	}
	if len(api.requests) != 0 {
		t.Fatal("nothing may reach the indexer without authorization")
	}
}

func TestSubmitRateLimited(t *testing.T) {
	wallet := testWallet(t)
	api := &fakeIndexer{}
	prover := zk.NewProver(&fakeGroups{}, fakeBackend{}, nil)
	limiter := ratelimiter.New(0.001, 1, time.Hour)
	now := time.UnixMilli(1700000000000)
	publisher := NewPublisher(prover, api, nil,
		WithLimiter(limiter),
		WithClock(func() time.Time { return now }),
	)

	post, _ := message.NewPost(message.PostSubtypeDefault, wallet.Address, message.PostPayload{Content: "x"}, now)
	if _, err := publisher.Submit(context.Background(), wallet, post); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := publisher.Submit(context.Background(), wallet, post); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second submit: want ErrRateLimited, got %v", err)
	}
	if len(api.requests) != 1 {
		t.Fatalf("published %d requests, want 1", len(api.requests))
	}
}

func TestSubmitSignalIsContentHash(t *testing.T) {
	wallet := testWallet(t)
	api := &fakeIndexer{}
	prover := zk.NewProver(&fakeGroups{}, fakeBackend{}, nil)
	publisher := NewPublisher(prover, api, nil)

	post, _ := message.NewPost(message.PostSubtypeDefault, wallet.Address, message.PostPayload{Content: "signed content"}, time.UnixMilli(1700000000000))
	if _, err := publisher.Submit(context.Background(), wallet, post); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	sig, err := hex.DecodeString(api.requests[0].Proof.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !wallet.Key.Verify([]byte(post.MessageID()+wallet.Address), sig) {
		t.Fatal("signature does not cover the content hash and address")
	}
	// Sanity: the id really is the sha256 of the canonical concatenation.
	if len(post.MessageID()) != sha256.Size*2 {
		t.Fatalf("message id length = %d", len(post.MessageID()))
	}
}

func TestSubmitPublishFailureDoesNotMarkPublished(t *testing.T) {
	wallet := testWallet(t)
	api := &fakeIndexer{err: errors.New("indexer down")}
	prover := zk.NewProver(&fakeGroups{}, fakeBackend{}, nil)
	publisher := NewPublisher(prover, api, nil)

	post, _ := message.NewPost(message.PostSubtypeDefault, wallet.Address, message.PostPayload{Content: "x"}, time.UnixMilli(1))
	if _, err := publisher.Submit(context.Background(), wallet, post); err == nil {
		t.Fatal("want error when the indexer rejects the publish")
	}
}
