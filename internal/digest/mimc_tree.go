// State roots are MiMC Merkle roots over the BN254 scalar field. Every node
// is a canonical 32-byte field element, so a parent is the hash of its two
// children written back to back.

package digest

import (
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

type node [fr.Bytes]byte

func sum(h hash.Hash, parts ...[]byte) (node, error) {
	h.Reset()
	for _, p := range parts {
		if _, err := h.Write(p); err != nil {
			return node{}, err
		}
	}
	var out node
	copy(out[:], h.Sum(nil))
	return out, nil
}

func leaf(h hash.Hash, v uint64) (node, error) {
	var e fr.Element
	e.SetUint64(v)
	b := e.Bytes()
	return sum(h, b[:])
}

// merkleRoot folds the leaf row pairwise until one node is left. The row is
// padded to a power of two with the leaf of 0.
func merkleRoot(values []uint64) (node, error) {
	h := bnmimc.NewMiMC()
	pad, err := leaf(h, 0)
	if err != nil {
		return node{}, err
	}
	width := 1
	for width < len(values) {
		width <<= 1
	}
	row := make([]node, width)
	for i := range row {
		row[i] = pad
		if i < len(values) {
			if row[i], err = leaf(h, values[i]); err != nil {
				return node{}, err
			}
		}
	}
	for len(row) > 1 {
		half := len(row) / 2
		for i := 0; i < half; i++ {
			if row[i], err = sum(h, row[2*i][:], row[2*i+1][:]); err != nil {
				return node{}, err
			}
		}
		row = row[:half]
	}
	return row[0], nil
}
