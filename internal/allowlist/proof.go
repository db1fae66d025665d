// Package allowlist commits a fixed set of addresses to a single Keccak-256
// root and checks inclusion proofs against it.
//
// Leaves are keccak256(address). Interior nodes hash the two children after
// ordering them bytewise, so a proof is just the list of sibling digests from
// leaf to root with no left/right flags. A node without a sibling is promoted
// to the next layer unchanged and contributes nothing to the proof.
package allowlist

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// MaxProofLength is the deepest proof any tree can produce; a longer proof
// is rejected without hashing.
const MaxProofLength = 64

// Proof is an ordered list of sibling digests, leaf level first. Entries that
// are not exactly 32 bytes make the whole proof invalid.
type Proof [][]byte

// Leaf returns the leaf digest of an address.
func Leaf(addr common.Address) common.Hash {
	return keccak(addr.Bytes())
}

// Verify reports whether proof links addr's leaf to root. It never panics and
// treats malformed or truncated proofs as non-membership.
func Verify(root common.Hash, addr common.Address, proof Proof) bool {
	return VerifyLeaf(root, Leaf(addr), proof)
}

// VerifyLeaf is Verify for a precomputed leaf digest.
func VerifyLeaf(root, leaf common.Hash, proof Proof) bool {
	if len(proof) > MaxProofLength {
		return false
	}
	computed := leaf
	for _, sibling := range proof {
		if len(sibling) != common.HashLength {
			return false
		}
		computed = hashPair(computed, common.BytesToHash(sibling))
	}
	return computed == root
}

// ParseProof decodes 0x-prefixed hex digests. Undecodable entries are kept as
// nil so that verification, not parsing, rejects them. At most
// MaxProofLength+1 entries are decoded, which is enough for VerifyLeaf to
// reject an overlong proof.
func ParseProof(entries []string) Proof {
	if len(entries) > MaxProofLength+1 {
		entries = entries[:MaxProofLength+1]
	}
	proof := make(Proof, 0, len(entries))
	for _, entry := range entries {
		raw, err := hexutil.Decode(strings.TrimSpace(entry))
		if err != nil || len(raw) != common.HashLength {
			raw = nil
		}
		proof = append(proof, raw)
	}
	return proof
}

// Hex renders the proof as 0x-prefixed strings.
func (p Proof) Hex() []string {
	out := make([]string, len(p))
	for i, sibling := range p {
		out[i] = common.BytesToHash(sibling).Hex()
	}
	return out
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return keccak(a[:], b[:])
}

func keccak(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return common.BytesToHash(h.Sum(nil))
}
