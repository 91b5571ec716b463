package abis

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/private-rollup/utils"
)

// SiloNoteHash binds a note hash (or a read of one) to the contract that
// created it.
func SiloNoteHash(contract, noteHash fr.Element) fr.Element {
	return H(GeneratorSiloNoteHash, contract, noteHash)
}

// SiloNullifier binds a nullifier to the contract that emitted it.
func SiloNullifier(contract, nullifier fr.Element) fr.Element {
	return H(GeneratorSiloNullifier, contract, nullifier)
}

// NoteHashNonce is the nonce of the i-th note hash of the transaction whose
// first nullifier is given.
func NoteHashNonce(firstNullifier fr.Element, i uint64) fr.Element {
	return H(GeneratorNoteHashNonce, firstNullifier, fr.NewElement(i))
}

// UniqueNoteHash makes a siloed note hash globally unique.
func UniqueNoteHash(nonce, siloedNoteHash fr.Element) fr.Element {
	return H(GeneratorUniqueNoteHash, nonce, siloedNoteHash)
}

// ConstructorHash binds the constructor call of a deployment: the function
// called, its arguments and its verification key.
func ConstructorHash(fd FunctionData, argsHash, vkHash fr.Element) fr.Element {
	return H(GeneratorConstructor, fd.Hash(), argsHash, vkHash)
}

// ContractAddress derives the address of a deployed contract.
func ContractAddress(deployer Point, salt, functionTreeRoot, constructorHash fr.Element) fr.Element {
	return H(GeneratorContractAddress, deployer.X, deployer.Y, salt, functionTreeRoot, constructorHash)
}

// FunctionLeaf is the leaf of a contract's function tree.
func FunctionLeaf(fd FunctionData, vkHash, acirHash fr.Element) fr.Element {
	return H(GeneratorFunctionLeaf,
		fr.NewElement(uint64(fd.Selector)),
		utils.FromBool(fd.IsInternal),
		utils.FromBool(fd.IsPrivate),
		vkHash, acirHash)
}

// ContractLeaf is the leaf of the contract tree.
func ContractLeaf(address fr.Element, portal common.Address, functionTreeRoot fr.Element) fr.Element {
	return H(GeneratorContractLeaf, address, utils.FromAddress(portal), functionTreeRoot)
}

// L2ToL1Message binds a message content to its sender contract, its L1
// recipient portal and the target chain.
func L2ToL1Message(contract fr.Element, portal common.Address, chainID, version, content fr.Element) fr.Element {
	return H(GeneratorL2ToL1Msg, contract, version, utils.FromAddress(portal), chainID, content)
}
