package allowlist

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"mintgate/pkg/platform/sentinel"
)

// ErrEmpty is returned when building a tree from no addresses.
var ErrEmpty = errors.New("allowlist is empty")

// Tree is the full set of layers built over an allowlist, kept so proofs can
// be served for any member. Leaves keep the order the addresses were given in.
type Tree struct {
	layers [][]common.Hash
	index  map[common.Address]int
}

// NewTree builds the commitment tree. Duplicate addresses keep their first
// position; the zero address is rejected.
func NewTree(addrs []common.Address) (*Tree, error) {
	index := make(map[common.Address]int, len(addrs))
	leaves := make([]common.Hash, 0, len(addrs))
	for _, addr := range addrs {
		if addr == (common.Address{}) {
			return nil, fmt.Errorf("allowlist entry %d: zero address", len(leaves))
		}
		if _, dup := index[addr]; dup {
			continue
		}
		index[addr] = len(leaves)
		leaves = append(leaves, Leaf(addr))
	}
	if len(leaves) == 0 {
		return nil, ErrEmpty
	}

	layers := [][]common.Hash{leaves}
	for current := leaves; len(current) > 1; {
		next := make([]common.Hash, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, hashPair(current[i], current[i+1]))
		}
		layers = append(layers, next)
		current = next
	}
	return &Tree{layers: layers, index: index}, nil
}

// Root is the allowlist commitment.
func (t *Tree) Root() common.Hash {
	return t.layers[len(t.layers)-1][0]
}

// Len is the number of distinct members.
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Contains reports membership without building a proof.
func (t *Tree) Contains(addr common.Address) bool {
	_, ok := t.index[addr]
	return ok
}

// Proof returns the sibling path for addr, or sentinel.ErrNotFound when the
// address is not a member.
func (t *Tree) Proof(addr common.Address) (Proof, error) {
	pos, ok := t.index[addr]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", addr.Hex(), sentinel.ErrNotFound)
	}
	proof := make(Proof, 0, len(t.layers)-1)
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := pos ^ 1
		if sibling < len(layer) {
			h := layer[sibling]
			proof = append(proof, h.Bytes())
		}
		pos /= 2
	}
	return proof, nil
}
