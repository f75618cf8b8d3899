package zk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPProvingBackend delegates proof generation to an external prover
// worker (the process that loads the circuit artifacts). The worker's
// output is treated as an opaque blob; this client never interprets it.
type HTTPProvingBackend struct {
	kind     ProofKind
	endpoint string
	http     *http.Client
}

func NewSemaphoreBackend(endpoint string) *HTTPProvingBackend {
	return newHTTPBackend(ProofKindSemaphore, endpoint)
}

func NewRLNBackend(endpoint string) *HTTPProvingBackend {
	return newHTTPBackend(ProofKindRLN, endpoint)
}

func newHTTPBackend(kind ProofKind, endpoint string) *HTTPProvingBackend {
	return &HTTPProvingBackend{
		kind:     kind,
		endpoint: endpoint,
		http:     &http.Client{Timeout: 2 * time.Minute},
	}
}

func (b *HTTPProvingBackend) Kind() ProofKind { return b.kind }

type proverRequest struct {
	Kind              string      `json:"kind"`
	ExternalNullifier string      `json:"externalNullifier"`
	Signal            string      `json:"signal"`
	Nullifier         string      `json:"identityNullifier"`
	Trapdoor          string      `json:"identityTrapdoor"`
	Merkle            MerkleProof `json:"merkleProof"`
}

func (b *HTTPProvingBackend) Prove(ctx context.Context, in ProofInput) (json.RawMessage, error) {
	body, err := json.Marshal(proverRequest{
		Kind:              string(b.kind),
		ExternalNullifier: in.ExternalNullifier,
		Signal:            in.Signal,
		Nullifier:         in.Nullifier,
		Trapdoor:          in.Trapdoor,
		Merkle:            in.Merkle,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prover worker returned %s", resp.Status)
	}

	var blob json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&blob); err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("prover worker returned an empty proof")
	}
	return blob, nil
}
