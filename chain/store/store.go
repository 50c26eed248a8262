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

// Package store declares the three persisted key-spaces the chain-sync core
// consumes as external collaborators: headers, block-meta and operations.
// The exact on-disk layout belongs to the implementation (memstore for
// tests, leveldbstore for production).
package store

import (
	"errors"

	"github.com/abeychain/go-tezsync/chain/types"
)

// ErrNotFound is returned by any Get when the key is absent.
var ErrNotFound = errors.New("store: not found")

// HeaderStore persists/retrieves block headers by hash.
type HeaderStore interface {
	GetHeader(hash types.Hash) (*types.BlockHeader, error)
	HasHeader(hash types.Hash) bool
	PutHeader(h *types.BlockHeader) error
}

// MetaStore persists/retrieves per-block metadata.
type MetaStore interface {
	GetMeta(hash types.Hash) (*types.BlockMeta, error)
	HasMeta(hash types.Hash) bool
	PutMeta(hash types.Hash, m *types.BlockMeta) error
}

// OperationStore persists/retrieves block operations and mempool operations.
type OperationStore interface {
	GetOperations(key types.OperationsKey) ([]types.Operation, error)
	HasOperations(key types.OperationsKey) bool
	PutOperations(key types.OperationsKey, ops []types.Operation) error
}
