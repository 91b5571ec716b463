package abis

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/hash/bn254/poseidon2"
	"github.com/vocdoni/private-rollup/hash/calldata"
	"github.com/vocdoni/private-rollup/utils"
)

// fieldWriter flattens structures into the limbs committed to by H.
type fieldWriter []fr.Element

func (w *fieldWriter) add(es ...fr.Element) { *w = append(*w, es...) }

func (w *fieldWriter) u64(v uint64) { w.add(fr.NewElement(v)) }

func (w *fieldWriter) bool(b bool) { w.add(utils.FromBool(b)) }

func (w *fieldWriter) address(a common.Address) { w.add(utils.FromAddress(a)) }

func (w *fieldWriter) digest(d calldata.Digest) {
	hi, lo := d.Fields()
	w.add(hi, lo)
}

func (w *fieldWriter) snapshot(s Snapshot) { w.add(s.fields()...) }

// writeArray commits to the length and every slot, so an occupied zero and
// an empty slot never encode the same way.
func writeArray[T any](w *fieldWriter, a array.Array[T], enc func(*fieldWriter, T)) {
	w.u64(uint64(a.Len()))
	for _, v := range a.Padded() {
		enc(w, v)
	}
}

func writeField(w *fieldWriter, v fr.Element) { w.add(v) }

func (w fieldWriter) hash(tag poseidon2.Tag) fr.Element { return H(tag, w...) }
