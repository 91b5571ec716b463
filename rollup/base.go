package rollup

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/vocdoni/private-rollup/abis"
	"github.com/vocdoni/private-rollup/array"
	"github.com/vocdoni/private-rollup/circuits"
	"github.com/vocdoni/private-rollup/config"
	"github.com/vocdoni/private-rollup/failure"
	"github.com/vocdoni/private-rollup/hash/calldata"
	"github.com/vocdoni/private-rollup/oracle"
	"github.com/vocdoni/private-rollup/tree/indexed"
	"github.com/vocdoni/private-rollup/tree/merkle"
	"github.com/vocdoni/private-rollup/utils"
)

// Base inserts the effects of two ordered transactions. Note hashes and
// contracts of both kernels are inserted as one subtree each, left kernel
// first. Nullifiers are inserted one by one, empty slots included, each
// against the post-mutation witness of the previous insertion.
func Base(ctx *config.Context, in *abis.BaseRollupInputs) (*Output, error) {
	log := ctx.Logger(abis.StageBaseRollup.String())
	col := failure.NewCollector(log)
	cfg := ctx.Config

	out := &Output{
		Stage: abis.StageBaseRollup,
		PublicInputs: abis.BaseOrMergeRollupPublicInputs{
			RollupType:                 abis.RollupTypeBase,
			Constants:                  in.Constants,
			StartNoteHashTreeSnapshot:  in.StartNoteHashTreeSnapshot,
			StartNullifierTreeSnapshot: in.StartNullifierTreeSnapshot,
			StartContractTreeSnapshot:  in.StartContractTreeSnapshot,
		},
	}
	pi := &out.PublicInputs
	claim := func(c *oracle.Claim) {
		if c != nil {
			out.Claims = append(out.Claims, *c)
		}
	}

	shapes := true
	for i := range in.Kernels {
		shapes = validateKernel(ctx, col, in, i) && shapes
		if c := historicMembership(ctx.Config, col, in, i); c != nil {
			out.Claims = append(out.Claims, c...)
		}
	}
	left, right := &in.Kernels[0].PublicInputs, &in.Kernels[1].PublicInputs
	col.Check(left.Constants.Equal(right.Constants), failure.ErrConstants, "kernel constants differ")

	if !shapes {
		pi.EndNoteHashTreeSnapshot = pi.StartNoteHashTreeSnapshot
		pi.EndNullifierTreeSnapshot = pi.StartNullifierTreeSnapshot
		pi.EndContractTreeSnapshot = pi.StartContractTreeSnapshot
		return out, col.Err()
	}

	var noteHashes, contracts []fr.Element
	var nullifiers []array.Slot[fr.Element]
	for _, k := range []*abis.KernelPublicInputs{left, right} {
		noteHashes = append(noteHashes, k.End.NewNoteHashes.Padded()...)
		for _, s := range k.End.NewNullifiers.Slots() {
			nullifiers = append(nullifiers, array.Slot[fr.Element]{Value: s.Value.Value, Occupied: s.Occupied})
		}
		for _, s := range k.End.NewContracts.Slots() {
			var leaf fr.Element
			if s.Occupied {
				leaf = s.Value.Hash()
			}
			contracts = append(contracts, leaf)
		}
	}

	var c *oracle.Claim
	pi.EndNoteHashTreeSnapshot, c = insertSubtree(col, "note hash", cfg.NoteHashTreeHeight,
		in.StartNoteHashTreeSnapshot, cfg.NoteHashSubtreeHeight(), noteHashes, in.NoteHashSubtreeSiblingPath)
	claim(c)
	pi.EndContractTreeSnapshot, c = insertSubtree(col, "contract", cfg.ContractTreeHeight,
		in.StartContractTreeSnapshot, cfg.ContractSubtreeHeight(), contracts, in.ContractSubtreeSiblingPath)
	claim(c)

	nullifierCol := failure.NewCollector(log)
	pi.EndNullifierTreeSnapshot = indexed.VerifyInsert(nullifierCol, cfg.NullifierTreeHeight,
		in.StartNullifierTreeSnapshot, nullifiers, in.LowNullifierWitnesses)
	if nullifierCol.OK() {
		claims, err := circuits.LowLeafClaims(cfg.NullifierTreeHeight, in.StartNullifierTreeSnapshot,
			nullifiers, in.LowNullifierWitnesses)
		if err != nil {
			col.Add(failure.ErrLowLeafWitnesses, "%v", err)
		}
		out.Claims = append(out.Claims, claims...)
	}
	col.Merge(nullifierCol.Err())

	pi.CalldataHash = calldata.Pair(kernelCalldata(&left.End), kernelCalldata(&right.End))

	log.Debug().
		Uint32("noteHashes", pi.EndNoteHashTreeSnapshot.NextAvailableLeafIndex).
		Uint32("nullifiers", pi.EndNullifierTreeSnapshot.NextAvailableLeafIndex).
		Uint32("contracts", pi.EndContractTreeSnapshot.NextAvailableLeafIndex).
		Bool("ok", col.OK()).
		Msg("base rollup")
	return out, col.Err()
}

// validateKernel checks the proof, key and shape of kernel i, and that it
// targets the chain of the rollup. It reports whether its arrays can be
// read safely.
func validateKernel(ctx *config.Context, col *failure.Collector, in *abis.BaseRollupInputs, i int) bool {
	k := &in.Kernels[i]
	name := [2]string{"left kernel", "right kernel"}[i]
	validateKey(ctx, col, name, k.VK, k.Proof, k.PublicInputs.Hash(),
		abis.StageKernelOrdering, abis.StageEmptyKernel)
	col.Check(k.PublicInputs.IsPrivate, failure.ErrVerificationKeyStage, "%s is not private", name)

	tx := k.PublicInputs.Constants.TxContext
	col.Check(utils.Equal(tx.ChainID, in.Constants.ChainID), failure.ErrChainID,
		"%s: %s, rollup %s", name, tx.ChainID.String(), in.Constants.ChainID.String())
	col.Check(utils.Equal(tx.Version, in.Constants.Version), failure.ErrVersion,
		"%s: %s, rollup %s", name, tx.Version.String(), in.Constants.Version.String())

	end := &k.PublicInputs.End
	if err := end.CheckShape(ctx.Config); err != nil {
		col.Add(shapeFailure(err), "%s: %v", name, err)
		return false
	}
	col.Check(end.ReadRequests.IsEmpty(), failure.ErrTransientRead, "%s: %d unresolved read requests",
		name, end.ReadRequests.Len())
	col.Check(end.PrivateCallStack.IsEmpty(), failure.ErrCallStackPending, "%s: %d private calls",
		name, end.PrivateCallStack.Len())
	return true
}

// historicMembership checks the roots kernel i executed against are roots
// the chain actually had, using the historic trees as of the block start.
func historicMembership(cfg *config.Config, col *failure.Collector, in *abis.BaseRollupInputs, i int) []oracle.Claim {
	roots := in.Kernels[i].PublicInputs.Constants.HistoricTreeRoots
	var claims []oracle.Claim
	for _, h := range []struct {
		name string
		root fr.Element
		tree abis.Snapshot
		w    abis.MembershipWitness
	}{
		{"note hash", roots.NoteHashTreeRoot, in.Constants.StartHistoricNoteHashTreeRootsSnapshot, in.HistoricNoteHashRootWitnesses[i]},
		{"contract", roots.ContractTreeRoot, in.Constants.StartHistoricContractTreeRootsSnapshot, in.HistoricContractRootWitnesses[i]},
		{"l1 to l2", roots.L1ToL2MessagesTreeRoot, in.Constants.StartHistoricL1ToL2TreeRootsSnapshot, in.HistoricL1ToL2RootWitnesses[i]},
	} {
		if !col.Check(len(h.w.SiblingPath) == cfg.HistoricRootsTreeHeight, failure.ErrWitnessShape,
			"kernel %d historic %s root: path of %d siblings", i, h.name, len(h.w.SiblingPath)) {
			continue
		}
		if col.Check(merkle.IsMember(h.tree.Root, h.root, h.w), failure.ErrHistoricRootMembership,
			"kernel %d historic %s root at %d", i, h.name, h.w.LeafIndex) {
			claims = append(claims, circuits.MembershipClaim(h.tree.Root, h.root, h.w))
		}
	}
	return claims
}

// kernelCalldata hashes the effects of one transaction published to L1:
// note hashes, nullifiers, L2 to L1 messages and new contracts, every array
// at full capacity, then both log digests and their preimage lengths.
func kernelCalldata(end *abis.AccumulatedData) calldata.Digest {
	enc := new(calldata.Encoder)
	enc.Fields(end.NewNoteHashes.Padded()...)
	for _, n := range end.NewNullifiers.Padded() {
		enc.Field(n.Value)
	}
	enc.Fields(end.NewL2ToL1Msgs.Padded()...)
	for _, c := range end.NewContracts.Padded() {
		enc.Field(c.ContractAddress).Field(utils.FromAddress(c.PortalContractAddress))
	}
	enc.Word(end.EncryptedLogsHash).Word(end.UnencryptedLogsHash)
	enc.Fields(
		utils.FromUint64(end.EncryptedLogPreimagesLength),
		utils.FromUint64(end.UnencryptedLogPreimagesLength),
	)
	return enc.Digest()
}
