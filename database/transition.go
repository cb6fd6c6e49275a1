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

package database

import (
	"github.com/blinklabs-io/certchain/database/models"
)

// AppendTransitions adds events to the end of the log, assigning their
// positions in place. The log has no update or delete operations.
func (d *Database) AppendTransitions(
	events []models.Transition,
	txn *Txn,
) error {
	return d.update(txn, func(txn *Txn) error {
		return d.metadata.AppendTransitions(events, txn.Metadata())
	})
}

// ScanTransitions returns the events matching the filter in position order
func (d *Database) ScanTransitions(
	filter models.TransitionFilter,
	txn *Txn,
) ([]models.Transition, error) {
	var ret []models.Transition
	err := d.view(txn, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.ScanTransitions(filter, txn.Metadata())
		return err
	})
	return ret, err
}

// CountTransitions returns how many events match the filter
func (d *Database) CountTransitions(
	filter models.TransitionFilter,
	txn *Txn,
) (int64, error) {
	var ret int64
	err := d.view(txn, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.CountTransitions(filter, txn.Metadata())
		return err
	})
	return ret, err
}

// LastTransitionPosition returns the position of the newest event, or 0 for
// an empty log
func (d *Database) LastTransitionPosition(txn *Txn) (uint64, error) {
	var ret uint64
	err := d.view(txn, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.LastTransitionPosition(txn.Metadata())
		return err
	})
	return ret, err
}
