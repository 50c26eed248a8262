// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package message defines the typed peer-protocol variants the chain-sync
// core consumes and emits, and the closed error-kind taxonomy of §7.
package message

import "github.com/abeychain/go-tezsync/chain/types"

// Message codes, mirroring the teacher's protocol.go const block but
// enumerating this spec's wire variants instead of Ethereum's.
const (
	GetCurrentBranchMsg       = 0x00
	CurrentBranchMsg          = 0x01
	GetCurrentHeadMsg         = 0x02
	CurrentHeadMsg            = 0x03
	GetBlockHeadersMsg        = 0x04
	BlockHeaderMsg            = 0x05
	GetOperationsForBlocksMsg = 0x06
	OperationsForBlocksMsg    = 0x07
	GetOperationsMsg          = 0x08
	OperationMsg              = 0x09
	AdvertiseMsg              = 0x0a
	BootstrapMsg              = 0x0b
)

// Message is implemented by every wire variant the core exchanges with a
// peer. Framing, versioning and authentication live in PeerLink.
type Message interface {
	Code() uint64
}

type GetCurrentBranch struct{ ChainID types.Hash }

func (GetCurrentBranch) Code() uint64 { return GetCurrentBranchMsg }

// History is a sparse, peer-specific probe list of ancestor hashes.
type History []types.Hash

type CurrentBranch struct {
	Head    types.BlockHeader
	History History
}

func (CurrentBranch) Code() uint64 { return CurrentBranchMsg }

type GetCurrentHead struct{ ChainID types.Hash }

func (GetCurrentHead) Code() uint64 { return GetCurrentHeadMsg }

type CurrentHead struct {
	ChainID types.Hash
	Header  types.BlockHeader
	Mempool []types.Operation
}

func (CurrentHead) Code() uint64 { return CurrentHeadMsg }

type GetBlockHeaders struct{ Hashes []types.Hash }

func (GetBlockHeaders) Code() uint64 { return GetBlockHeadersMsg }

type BlockHeaderMessage struct{ Header types.BlockHeader }

func (BlockHeaderMessage) Code() uint64 { return BlockHeaderMsg }

type GetOperationsForBlocks struct{ Keys []types.OperationsKey }

func (GetOperationsForBlocks) Code() uint64 { return GetOperationsForBlocksMsg }

type OperationsForBlocks struct {
	Key types.OperationsKey
	Ops []types.Operation
}

func (OperationsForBlocks) Code() uint64 { return OperationsForBlocksMsg }

type GetOperations struct{ Hashes []types.Hash }

func (GetOperations) Code() uint64 { return GetOperationsMsg }

type OperationMessage struct{ Op types.Operation }

func (OperationMessage) Code() uint64 { return OperationMsg }

type Advertise struct{ Peers []string }

func (Advertise) Code() uint64 { return AdvertiseMsg }

type Bootstrap struct{}

func (Bootstrap) Code() uint64 { return BootstrapMsg }

// ErrorKind is the closed taxonomy from §7. Component-internal errors are
// classified into one of these before crossing a task boundary; no
// exception-style wrapping is allowed to propagate past that point.
type ErrorKind int

const (
	KindTransientIO ErrorKind = iota
	KindProtocolMisbehavior
	KindCausality
	KindFatalInvariant
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransientIO:
		return "transient-io"
	case KindProtocolMisbehavior:
		return "protocol-misbehavior"
	case KindCausality:
		return "causality"
	case KindFatalInvariant:
		return "fatal-invariant"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// Error carries a classified failure plus the component that raised it.
type Error struct {
	Kind      ErrorKind
	Component string
	Err       error
}

func (e *Error) Error() string { return e.Component + ": " + e.Kind.String() + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// New classifies err under kind, raised by component.
func New(kind ErrorKind, component string, err error) *Error {
	return &Error{Kind: kind, Component: component, Err: err}
}
