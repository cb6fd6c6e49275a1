// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chain

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/certchain/cert"
)

var (
	ErrNoGenesis        = errors.New("ledger has no genesis block")
	ErrOwnerRequired    = errors.New("registry owner address is required")
	ErrEmptyTransaction = errors.New("transaction emitted no events")
	ErrBlockNotFound    = errors.New("block not found")
	ErrIteratorEnd      = errors.New("event iterator exhausted")
	ErrLedgerHalted     = errors.New(
		"ledger halted after a partial commit, run verify-chain and restart",
	)
)

// BlockHashMismatchError is returned by integrity verification when a stored
// block hash differs from the hash recomputed from its contents
type BlockHashMismatchError struct {
	number   uint64
	stored   cert.Hash
	computed cert.Hash
}

func NewBlockHashMismatchError(
	number uint64,
	stored cert.Hash,
	computed cert.Hash,
) BlockHashMismatchError {
	return BlockHashMismatchError{
		number:   number,
		stored:   stored,
		computed: computed,
	}
}

func (e BlockHashMismatchError) BlockNumber() uint64 {
	return e.number
}

func (e BlockHashMismatchError) Stored() cert.Hash {
	return e.stored
}

func (e BlockHashMismatchError) Computed() cert.Hash {
	return e.computed
}

func (e BlockHashMismatchError) Error() string {
	return fmt.Sprintf(
		"block %d hash mismatch: stored %s, computed %s",
		e.number,
		e.stored,
		e.computed,
	)
}

// ChainLinkError is returned by integrity verification when blocks or events
// are out of sequence
type ChainLinkError struct {
	BlockNumber uint64
	Reason      string
}

func (e ChainLinkError) Error() string {
	return fmt.Sprintf("chain broken at block %d: %s", e.BlockNumber, e.Reason)
}
