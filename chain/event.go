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
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/event"
)

const (
	BlockEventType event.EventType = "chain.block"
)

// Event is a committed certificate state transition
type Event struct {
	Position        uint64
	BlockNumber     uint64
	LogIndex        uint32
	CertificateHash cert.Hash
	Action          cert.Action
	// StudentID is only set on issuance events
	StudentID string
	Actor     cert.Address
	Timestamp time.Time
}

// Block is the header of a committed ledger transaction
type Block struct {
	Number     uint64
	Hash       cert.Hash
	PrevHash   cert.Hash
	Timestamp  time.Time
	EventCount uint32
}

// Receipt describes the block produced by a successful transaction
type Receipt struct {
	Block  Block
	Events []Event
}

// BlockEvent is published on the event bus after each committed block
type BlockEvent struct {
	Block  Block
	Events []Event
}

// Tip identifies the newest committed block and event
type Tip struct {
	BlockNumber  uint64
	BlockHash    cert.Hash
	Timestamp    time.Time
	LastPosition uint64
}

func eventFromModel(m models.Transition) Event {
	ret := Event{
		Position:    m.Position,
		BlockNumber: m.BlockNumber,
		LogIndex:    m.LogIndex,
		Action:      cert.Action(m.Action),
		StudentID:   m.StudentID,
		Timestamp:   time.Unix(m.Timestamp, 0).UTC(),
	}
	copy(ret.CertificateHash[:], m.CertificateHash)
	copy(ret.Actor[:], m.Actor)
	return ret
}

func eventToModel(e Event) models.Transition {
	return models.Transition{
		Position:        e.Position,
		BlockNumber:     e.BlockNumber,
		LogIndex:        e.LogIndex,
		CertificateHash: e.CertificateHash.Bytes(),
		Action:          uint8(e.Action),
		StudentID:       e.StudentID,
		Actor:           e.Actor.Bytes(),
		Timestamp:       e.Timestamp.Unix(),
	}
}

func blockFromModel(m models.Block) Block {
	ret := Block{
		Number:     m.Number,
		Timestamp:  time.Unix(m.Timestamp, 0).UTC(),
		EventCount: m.EventCount,
	}
	copy(ret.Hash[:], m.Hash)
	copy(ret.PrevHash[:], m.PrevHash)
	return ret
}
