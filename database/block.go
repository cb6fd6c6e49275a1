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

func (d *Database) AddBlock(block models.Block, txn *Txn) error {
	return d.update(txn, func(txn *Txn) error {
		return d.metadata.AddBlock(block, txn.Metadata())
	})
}

// GetBlock returns the block with the given number, or types.ErrNotFound
func (d *Database) GetBlock(number uint64, txn *Txn) (models.Block, error) {
	var ret models.Block
	err := d.view(txn, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetBlock(number, txn.Metadata())
		return err
	})
	return ret, err
}

// GetTipBlock returns the newest block, or types.ErrNotFound for an empty chain
func (d *Database) GetTipBlock(txn *Txn) (models.Block, error) {
	var ret models.Block
	err := d.view(txn, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetTipBlock(txn.Metadata())
		return err
	})
	return ret, err
}

// GetBlocks returns up to limit blocks starting at fromNumber
func (d *Database) GetBlocks(
	fromNumber uint64,
	limit int,
	txn *Txn,
) ([]models.Block, error) {
	var ret []models.Block
	err := d.view(txn, func(txn *Txn) error {
		var err error
		ret, err = d.metadata.GetBlocks(fromNumber, limit, txn.Metadata())
		return err
	})
	return ret, err
}
