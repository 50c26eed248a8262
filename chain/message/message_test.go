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

package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageCodesAreDistinct(t *testing.T) {
	msgs := []Message{
		GetCurrentBranch{},
		CurrentBranch{},
		GetCurrentHead{},
		CurrentHead{},
		GetBlockHeaders{},
		BlockHeaderMessage{},
		GetOperationsForBlocks{},
		OperationsForBlocks{},
		GetOperations{},
		OperationMessage{},
		Advertise{},
		Bootstrap{},
	}
	seen := make(map[uint64]bool)
	for _, m := range msgs {
		require.False(t, seen[m.Code()], "duplicate code %d", m.Code())
		seen[m.Code()] = true
	}
	require.Len(t, seen, len(msgs))
}

func TestErrorWrapsAndClassifies(t *testing.T) {
	cause := errors.New("connection reset")
	err := New(KindTransientIO, "downloader", cause)

	require.Equal(t, "transient-io", err.Kind.String())
	require.Equal(t, "downloader: transient-io: connection reset", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestErrorKindStringUnknown(t *testing.T) {
	require.Equal(t, "unknown", ErrorKind(99).String())
}
