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

// Package memstore is an in-memory fake of the three store interfaces,
// grounded on the in-memory fake chain used by abey/downloader's tests.
package memstore

import (
	"sync"

	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
)

// Store implements store.HeaderStore, store.MetaStore and
// store.OperationStore over plain maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	headers map[types.Hash]*types.BlockHeader
	metas   map[types.Hash]*types.BlockMeta
	ops     map[types.OperationsKey][]types.Operation
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		headers: make(map[types.Hash]*types.BlockHeader),
		metas:   make(map[types.Hash]*types.BlockMeta),
		ops:     make(map[types.OperationsKey][]types.Operation),
	}
}

func (s *Store) GetHeader(hash types.Hash) (*types.BlockHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.headers[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return h, nil
}

func (s *Store) HasHeader(hash types.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.headers[hash]
	return ok
}

func (s *Store) PutHeader(h *types.BlockHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[h.Hash] = h
	return nil
}

func (s *Store) GetMeta(hash types.Hash) (*types.BlockMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metas[hash]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m, nil
}

func (s *Store) HasMeta(hash types.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.metas[hash]
	return ok
}

func (s *Store) PutMeta(hash types.Hash, m *types.BlockMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[hash] = m
	return nil
}

func (s *Store) GetOperations(key types.OperationsKey) ([]types.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops, ok := s.ops[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return ops, nil
}

func (s *Store) HasOperations(key types.OperationsKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ops[key]
	return ok
}

func (s *Store) PutOperations(key types.OperationsKey, ops []types.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops[key] = ops
	return nil
}
