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
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database/models"
)

// Ledger is the ordered, append-only store the registry runs on. Each
// submitted transaction is applied atomically and produces exactly one block;
// a failed transaction leaves no trace.
type Ledger interface {
	// Genesis records the registry owner on first use and returns the owner
	// stored in the ledger
	Genesis(ctx context.Context, owner cert.Address) (cert.Address, error)
	SubmitTransaction(ctx context.Context, fn TxFunc) (Receipt, error)
	// ReadState runs fn against a consistent snapshot. fn must not call
	// back into the ledger.
	ReadState(ctx context.Context, fn func(StateReader) error) error
	QueryEvents(ctx context.Context, query EventQuery) ([]Event, error)
	// CountEvents ignores the limit, offset and order of the query
	CountEvents(ctx context.Context, query EventQuery) (int64, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
	Tip() Tip
}

// StateReader gives point-in-time access to certificate records
type StateReader interface {
	Certificate(hash cert.Hash) (cert.Record, error)
	Owner() (cert.Address, error)
}

// TxFunc reads and writes ledger state inside a transaction. Returning an
// error aborts the transaction.
type TxFunc func(tx *Tx) error

// EventQuery selects events from the log. Zero values do not constrain the
// query. ToPosition 0 means the current tip.
type EventQuery struct {
	CertificateHash *cert.Hash
	Actions         []cert.Action
	StudentID       string
	FromPosition    uint64
	ToPosition      uint64
	Limit           int
	Offset          int
	Descending      bool
}

func (q EventQuery) filter() models.TransitionFilter {
	ret := models.TransitionFilter{
		StudentID:    q.StudentID,
		FromPosition: q.FromPosition,
		ToPosition:   q.ToPosition,
		Limit:        q.Limit,
		Offset:       q.Offset,
		Descending:   q.Descending,
	}
	if q.CertificateHash != nil {
		ret.CertificateHash = q.CertificateHash.Bytes()
	}
	for _, action := range q.Actions {
		ret.Actions = append(ret.Actions, uint8(action))
	}
	return ret
}
