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
	"github.com/blinklabs-io/certchain/database"
)

// Tx is the handle passed to a TxFunc. It is only valid for the duration of
// the call.
type Tx struct {
	db        *database.Database
	txn       *database.Txn
	timestamp time.Time
	pending   []Event
}

// Timestamp returns the timestamp of the block being built
func (t *Tx) Timestamp() time.Time {
	return t.timestamp
}

func (t *Tx) Certificate(hash cert.Hash) (cert.Record, error) {
	return t.db.GetCertificate(hash, t.txn)
}

func (t *Tx) Owner() (cert.Address, error) {
	return t.db.GetOwner(t.txn)
}

func (t *Tx) PutCertificate(rec cert.Record) error {
	return t.db.PutCertificate(rec, t.txn)
}

func (t *Tx) MarkRevoked(hash cert.Hash) error {
	return t.db.MarkCertificateRevoked(hash, t.txn)
}

// Emit queues an event for the block. Position, block number, log index and
// timestamp are assigned at commit.
func (t *Tx) Emit(ev Event) {
	t.pending = append(t.pending, ev)
}

type stateReader struct {
	db  *database.Database
	txn *database.Txn
}

func (s *stateReader) Certificate(hash cert.Hash) (cert.Record, error) {
	return s.db.GetCertificate(hash, s.txn)
}

func (s *stateReader) Owner() (cert.Address, error) {
	return s.db.GetOwner(s.txn)
}
