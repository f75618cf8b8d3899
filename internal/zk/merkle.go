package zk

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrProofVerification = errors.New("merkle proof failed local root reconstruction")
	ErrMalformedProof    = errors.New("merkle proof is malformed")
)

// MerkleProof is the inclusion path returned by the group membership
// service: fold Leaf up through Siblings, using PathIndices as left/right
// selectors, and the result must equal Root. A proof failing that check is
// never attached to a publish request.
type MerkleProof struct {
	Root        string   `json:"root"`
	Leaf        string   `json:"leaf"`
	Siblings    []string `json:"siblings"`
	PathIndices []int    `json:"pathIndices"`
	Group       string   `json:"group"`
}

// Verify recomputes the root from the leaf and path.
func (p MerkleProof) Verify() error {
	if len(p.Siblings) != len(p.PathIndices) {
		return fmt.Errorf("%w: %d siblings, %d path indices", ErrMalformedProof, len(p.Siblings), len(p.PathIndices))
	}
	node, err := decodeHash(p.Leaf)
	if err != nil {
		return fmt.Errorf("%w: leaf: %v", ErrMalformedProof, err)
	}
	for i, sibHex := range p.Siblings {
		sib, err := decodeHash(sibHex)
		if err != nil {
			return fmt.Errorf("%w: sibling %d: %v", ErrMalformedProof, i, err)
		}
		switch p.PathIndices[i] {
		case 0:
			node = hashPair(node, sib)
		case 1:
			node = hashPair(sib, node)
		default:
			return fmt.Errorf("%w: path index %d is %d", ErrMalformedProof, i, p.PathIndices[i])
		}
	}
	root, err := decodeHash(p.Root)
	if err != nil {
		return fmt.Errorf("%w: root: %v", ErrMalformedProof, err)
	}
	if !bytesEqual(node, root) {
		return ErrProofVerification
	}
	return nil
}

func hashPair(left, right []byte) []byte {
	h := sha256.New()
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}

func decodeHash(value string) ([]byte, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("empty hash")
	}
	return raw, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
