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

// Package apply declares the ApplyEngine external collaborator: the
// protocol-execution engine that validates and applies one block's
// operations. It is out of scope (spec §1) beyond this interface.
package apply

import "github.com/abeychain/go-tezsync/chain/types"

// Result is returned by a successful Apply.
type Result struct {
	Accepted bool
	Reason   string
}

// Engine applies one block+operations and reports the validation result.
type Engine interface {
	Apply(chainID types.Hash, header *types.BlockHeader, ops []types.Operation) (Result, error)
}

// StubEngine is an in-memory fake used by tests and by nodes running
// without a real protocol-execution engine wired in; it accepts every
// block unconditionally.
type StubEngine struct{}

func NewStub() *StubEngine { return &StubEngine{} }

func (StubEngine) Apply(_ types.Hash, _ *types.BlockHeader, _ []types.Operation) (Result, error) {
	return Result{Accepted: true}, nil
}
