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

package reconstruct

import (
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/chain"
)

// VerificationResult is the current state of a certificate. RevokedAt is
// recovered from the first Revoked event for the hash.
type VerificationResult struct {
	Hash           cert.Hash
	Name           string
	Classification cert.Classification
	StudentID      string
	StudentName    string
	DateOfBirth    time.Time
	Issuer         cert.Address
	IssuedAt       time.Time
	Revoked        bool
	RevokedAt      *time.Time
}

// HistoryEntry is one event of the log
type HistoryEntry struct {
	Position    uint64
	BlockNumber uint64
	Hash        cert.Hash
	Action      cert.Action
	StudentID   string
	Actor       cert.Address
	Timestamp   time.Time
}

type HistoryFilter struct {
	Actions []cert.Action
	// Descending returns the newest events first
	Descending   bool
	FromPosition uint64
	ToPosition   uint64
	Limit        int
	Offset       int
}

// StudentCertificate is one certificate issued to a student, annotated with
// the most recent transition for its hash
type StudentCertificate struct {
	Hash         cert.Hash
	LatestAction cert.Action
	IssuedAt     time.Time
	RevokedAt    *time.Time
}

// EventLookup is the state of a certificate derived from the log alone
type EventLookup struct {
	Hash         cert.Hash
	StudentID    string
	LatestAction cert.Action
	IssuedAt     time.Time
	RevokedAt    *time.Time
	Events       []HistoryEntry
}

func entryFromEvent(ev chain.Event) HistoryEntry {
	return HistoryEntry{
		Position:    ev.Position,
		BlockNumber: ev.BlockNumber,
		Hash:        ev.CertificateHash,
		Action:      ev.Action,
		StudentID:   ev.StudentID,
		Actor:       ev.Actor,
		Timestamp:   ev.Timestamp,
	}
}
