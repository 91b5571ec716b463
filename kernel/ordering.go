package kernel

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/utils"
)

// OrderingInputs are the fully accumulated data of a transaction and, for
// each of its nullifiers, the index of the note hash it squashes. Hints of
// nullifiers that are not transient are ignored.
type OrderingInputs struct {
	PreviousKernel abis.PreviousKernelData
	NullifierHints []uint32
}

// Ordering resolves transient reads, squashes note hashes nullified in the
// same transaction, compacts the arrays and makes every surviving note
// hash unique with a nonce derived from the tx nullifier.
func Ordering(ctx *config.Context, in *OrderingInputs) (*Output, error) {
	log := ctx.Logger(abis.StageKernelOrdering.String())
	col := failure.NewCollector(log)

	prev := &in.PreviousKernel
	validatePreviousKernel(ctx, col, prev, abis.StageKernelInit, abis.StageKernelInner)

	out := &Output{
		Stage: abis.StageKernelOrdering,
		PublicInputs: abis.KernelPublicInputs{
			End:       prev.PublicInputs.End.Clone(),
			Constants: prev.PublicInputs.Constants,
			IsPrivate: true,
		},
	}
	end := &out.PublicInputs.End
	col.Check(end.PrivateCallStack.IsEmpty(), failure.ErrCallStackPending, "%d calls", end.PrivateCallStack.Len())

	matchTransientReads(col, end)
	squashTransientNullifiers(col, end, in.NullifierHints)
	end.NewNoteHashes.Compact()
	end.NewNullifiers.Compact()
	applyNonces(end)

	log.Debug().
		Int("noteHashes", end.NewNoteHashes.Len()).
		Int("nullifiers", end.NewNullifiers.Len()).
		Bool("ok", col.OK()).
		Msg("kernel ordering")
	return out, col.Err()
}

// matchTransientReads checks every transient read against the note hash its
// hint points to, then drops every read request.
func matchTransientReads(col *failure.Collector, end *abis.AccumulatedData) {
	for i, rr := range end.ReadRequests.Values() {
		hint := int(rr.Witness.HintToNoteHash)
		nh, ok := end.NewNoteHashes.Get(hint)
		col.Check(ok && utils.Equal(nh, rr.Value), failure.ErrTransientRead,
			"read request %d, hint %d", i, hint)
	}
	end.ReadRequests = array.New[abis.ReadRequest](end.ReadRequests.Cap())
}

// squashTransientNullifiers clears each transient nullifier together with
// the note hash it consumes. A note hash can only be squashed once.
func squashTransientNullifiers(col *failure.Collector, end *abis.AccumulatedData, hints []uint32) {
	nullifiers := end.NewNullifiers.Values()
	if !col.Check(len(hints) == len(nullifiers), failure.ErrNullifierHintLength,
		"%d nullifiers, %d hints", len(nullifiers), len(hints)) {
		return
	}
	squashed := make([]bool, end.NewNoteHashes.Cap())
	var cleared []int
	for i, n := range nullifiers {
		if !n.IsTransient() {
			continue
		}
		hint := int(hints[i])
		nh, ok := end.NewNoteHashes.Get(hint)
		if !col.Check(ok && utils.Equal(nh, n.NullifiedNoteHash), failure.ErrTransientNullifier,
			"nullifier %d, hint %d", i, hint) {
			continue
		}
		if !col.Check(!squashed[hint], failure.ErrNoteHashSquashed, "nullifier %d, note hash %d", i, hint) {
			continue
		}
		squashed[hint] = true
		cleared = append(cleared, i)
	}
	// both indexes are within capacity, Clear cannot fail
	for _, i := range cleared {
		_ = end.NewNoteHashes.Clear(int(hints[i]))
		_ = end.NewNullifiers.Clear(i)
	}
}

// applyNonces replaces every note hash by its unique version:
//
//	nonce_i = H(first_nullifier, i)
//	unique_i = H(nonce_i, note_hash_i)
func applyNonces(end *abis.AccumulatedData) {
	first, ok := end.NewNullifiers.Get(0)
	if !ok {
		return
	}
	hashes := end.NewNoteHashes.Values()
	unique := make([]fr.Element, len(hashes))
	for i, nh := range hashes {
		unique[i] = abis.UniqueNoteHash(abis.NoteHashNonce(first.Value, uint64(i)), nh)
	}
	// same length and capacity as the array being replaced
	end.NewNoteHashes, _ = array.FromValues(end.NewNoteHashes.Cap(), unique...)
}
