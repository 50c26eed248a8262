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

// Package leveldbstore persists headers, block-meta and operations in a
// single goleveldb database under three key prefixes, mirroring the
// teacher's single-database-many-prefixes rawdb convention.
package leveldbstore

import (
	"encoding/binary"
	"encoding/json"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"

	"github.com/abeychain/go-tezsync/chain/store"
	"github.com/abeychain/go-tezsync/chain/types"
)

var (
	headerPrefix = []byte("h:")
	metaPrefix   = []byte("m:")
	opsPrefix    = []byte("o:")
)

// Store is a goleveldb-backed implementation of the three store interfaces.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if absent) the leveldb database at path.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func headerKey(h types.Hash) []byte { return append(append([]byte{}, headerPrefix...), h[:]...) }
func metaKey(h types.Hash) []byte   { return append(append([]byte{}, metaPrefix...), h[:]...) }

func opsKey(k types.OperationsKey) []byte {
	b := append(append([]byte{}, opsPrefix...), k.BlockHash[:]...)
	return append(b, byte(k.Pass))
}

// headerJSON/metaJSON are the on-disk encodings; kept deliberately simple
// (JSON, not a custom binary codec) since the store's wire format is
// explicitly out of scope for the chain-sync core (spec §1/§6).

type headerJSON struct {
	Level          types.Level
	Predecessor    types.Hash
	Fitness        types.Fitness
	OperationsRoot types.Hash
	ProtocolData   []byte
}

func (s *Store) GetHeader(hash types.Hash) (*types.BlockHeader, error) {
	raw, err := s.db.Get(headerKey(hash), nil)
	if err == errors.ErrNotFound {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var hj headerJSON
	if err := json.Unmarshal(raw, &hj); err != nil {
		return nil, err
	}
	return &types.BlockHeader{
		Hash:           hash,
		Level:          hj.Level,
		Predecessor:    hj.Predecessor,
		Fitness:        hj.Fitness,
		OperationsRoot: hj.OperationsRoot,
		ProtocolData:   hj.ProtocolData,
	}, nil
}

func (s *Store) HasHeader(hash types.Hash) bool {
	ok, _ := s.db.Has(headerKey(hash), nil)
	return ok
}

func (s *Store) PutHeader(h *types.BlockHeader) error {
	raw, err := json.Marshal(headerJSON{
		Level:          h.Level,
		Predecessor:    h.Predecessor,
		Fitness:        h.Fitness,
		OperationsRoot: h.OperationsRoot,
		ProtocolData:   h.ProtocolData,
	})
	if err != nil {
		return err
	}
	return s.db.Put(headerKey(h.Hash), raw, nil)
}

// metaJSON mirrors the externally-observable fields of types.BlockMeta; the
// internal mutex and completion bitmap are reconstructed on load.
type metaJSON struct {
	Level             types.Level
	Predecessor       types.Hash
	Applied           bool
	Successor         *types.Hash
	OperationsPresent [types.MaxPassIndex + 1]bool
}

func (s *Store) GetMeta(hash types.Hash) (*types.BlockMeta, error) {
	raw, err := s.db.Get(metaKey(hash), nil)
	if err == errors.ErrNotFound {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var mj metaJSON
	if err := json.Unmarshal(raw, &mj); err != nil {
		return nil, err
	}
	m := types.NewBlockMeta(mj.Level, mj.Predecessor)
	for p, present := range mj.OperationsPresent {
		if present {
			m.MarkOperationsPresent(types.PassIndex(p))
		}
	}
	if mj.Applied {
		m.MarkApplied()
	}
	if mj.Successor != nil {
		m.SetSuccessor(*mj.Successor)
	}
	return m, nil
}

func (s *Store) HasMeta(hash types.Hash) bool {
	ok, _ := s.db.Has(metaKey(hash), nil)
	return ok
}

func (s *Store) PutMeta(hash types.Hash, m *types.BlockMeta) error {
	mj := metaJSON{Level: m.Level, Predecessor: m.Predecessor, Applied: m.Applied()}
	if succ, ok := m.Successor(); ok {
		mj.Successor = &succ
	}
	for p := types.PassIndex(0); p <= types.MaxPassIndex; p++ {
		mj.OperationsPresent[p] = m.OperationsPresent(p)
	}
	raw, err := json.Marshal(mj)
	if err != nil {
		return err
	}
	return s.db.Put(metaKey(hash), raw, nil)
}

func (s *Store) GetOperations(key types.OperationsKey) ([]types.Operation, error) {
	raw, err := s.db.Get(opsKey(key), nil)
	if err == errors.ErrNotFound {
		return nil, store.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	var ops []types.Operation
	if err := json.Unmarshal(raw, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (s *Store) HasOperations(key types.OperationsKey) bool {
	ok, _ := s.db.Has(opsKey(key), nil)
	return ok
}

func (s *Store) PutOperations(key types.OperationsKey, ops []types.Operation) error {
	raw, err := json.Marshal(ops)
	if err != nil {
		return err
	}
	return s.db.Put(opsKey(key), raw, nil)
}

// levelKey encodes a level as a sortable big-endian key suffix, used only
// internally should range scans over levels be needed later.
func levelKey(l types.Level) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(l)+1<<31)
	return b
}
