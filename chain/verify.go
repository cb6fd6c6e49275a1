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
	"context"
	"errors"
	"fmt"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/types"
)

const verifyBlockPageSize = 256

type IntegrityReport struct {
	Blocks    uint64
	Events    uint64
	Tip       Tip
	Genesis   cert.Hash
	Owner     cert.Address
}

// VerifyIntegrity recomputes every block hash from the stored events and
// checks the links between consecutive blocks. The first inconsistency is
// returned as a BlockHashMismatchError or ChainLinkError.
func (c *Chain) VerifyIntegrity(ctx context.Context) (IntegrityReport, error) {
	var report IntegrityReport
	owner, err := c.db.GetOwner(nil)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return report, ErrNoGenesis
		}
		return report, err
	}
	report.Owner = owner
	var (
		prev    *models.Block
		lastPos uint64
		next    uint64
	)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		blocks, err := c.db.GetBlocks(next, verifyBlockPageSize, nil)
		if err != nil {
			return report, err
		}
		for i := range blocks {
			block := blocks[i]
			if err := c.verifyBlock(prev, block, owner, lastPos); err != nil {
				return report, err
			}
			lastPos += uint64(block.EventCount)
			report.Blocks++
			report.Events += uint64(block.EventCount)
			if block.Number == 0 {
				copy(report.Genesis[:], block.Hash)
			}
			prev = &blocks[i]
		}
		if len(blocks) < verifyBlockPageSize {
			break
		}
		next = blocks[len(blocks)-1].Number + 1
	}
	if prev == nil {
		return report, ErrNoGenesis
	}
	tail, err := c.db.ScanTransitions(
		models.TransitionFilter{FromPosition: lastPos + 1, Limit: 1},
		nil,
	)
	if err != nil {
		return report, err
	}
	if len(tail) > 0 {
		return report, ChainLinkError{
			BlockNumber: prev.Number,
			Reason: fmt.Sprintf(
				"event %d is not covered by any block",
				tail[0].Position,
			),
		}
	}
	report.Tip = Tip{
		BlockNumber:  prev.Number,
		Timestamp:    blockFromModel(*prev).Timestamp,
		LastPosition: lastPos,
	}
	copy(report.Tip.BlockHash[:], prev.Hash)
	return report, nil
}

func (c *Chain) verifyBlock(
	prev *models.Block,
	block models.Block,
	owner cert.Address,
	lastPos uint64,
) error {
	var stored cert.Hash
	copy(stored[:], block.Hash)
	if prev == nil {
		if block.Number != 0 {
			return ChainLinkError{BlockNumber: block.Number, Reason: "missing genesis block"}
		}
		if block.EventCount != 0 {
			return ChainLinkError{BlockNumber: 0, Reason: "genesis block carries events"}
		}
		computed := genesisHash(owner, block.Timestamp)
		if computed != stored {
			return NewBlockHashMismatchError(0, stored, computed)
		}
		return nil
	}
	if block.Number != prev.Number+1 {
		return ChainLinkError{
			BlockNumber: block.Number,
			Reason:      fmt.Sprintf("expected block %d", prev.Number+1),
		}
	}
	if string(block.PrevHash) != string(prev.Hash) {
		return ChainLinkError{BlockNumber: block.Number, Reason: "previous hash does not match"}
	}
	if block.Timestamp < prev.Timestamp {
		return ChainLinkError{BlockNumber: block.Number, Reason: "timestamp moved backwards"}
	}
	if block.EventCount == 0 {
		return ChainLinkError{BlockNumber: block.Number, Reason: "block has no events"}
	}
	events, err := c.db.ScanTransitions(
		models.TransitionFilter{
			FromPosition: lastPos + 1,
			ToPosition:   lastPos + uint64(block.EventCount),
		},
		nil,
	)
	if err != nil {
		return err
	}
	if len(events) != int(block.EventCount) {
		return ChainLinkError{
			BlockNumber: block.Number,
			Reason: fmt.Sprintf(
				"expected %d events, found %d",
				block.EventCount,
				len(events),
			),
		}
	}
	for i, ev := range events {
		if ev.Position != lastPos+uint64(i)+1 ||
			ev.BlockNumber != block.Number ||
			ev.LogIndex != uint32(i) || // #nosec G115
			ev.Timestamp != block.Timestamp {
			return ChainLinkError{
				BlockNumber: block.Number,
				Reason:      fmt.Sprintf("event %d is out of sequence", ev.Position),
			}
		}
	}
	var prevHash cert.Hash
	copy(prevHash[:], prev.Hash)
	computed := blockHash(prevHash, block.Number, block.Timestamp, events)
	if computed != stored {
		return NewBlockHashMismatchError(block.Number, stored, computed)
	}
	return nil
}
