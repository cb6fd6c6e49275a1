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

package gormstore

import (
	"errors"

	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/types"
	"gorm.io/gorm"
)

func (s *Store) AddBlock(block models.Block, txn types.Txn) error {
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	return db.Create(&block).Error
}

// GetBlock returns the block with the given number
func (s *Store) GetBlock(number uint64, txn types.Txn) (models.Block, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return models.Block{}, err
	}
	var ret models.Block
	result := db.Where("number = ?", number).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Block{}, types.ErrNotFound
		}
		return models.Block{}, result.Error
	}
	return ret, nil
}

// GetTipBlock returns the newest block
func (s *Store) GetTipBlock(txn types.Txn) (models.Block, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return models.Block{}, err
	}
	var ret models.Block
	result := db.Order("number DESC").First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Block{}, types.ErrNotFound
		}
		return models.Block{}, result.Error
	}
	return ret, nil
}

// GetBlocks returns up to limit blocks starting at the given number, in order
func (s *Store) GetBlocks(
	fromNumber uint64,
	limit int,
	txn types.Txn,
) ([]models.Block, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	var ret []models.Block
	result := db.Where("number >= ?", fromNumber).
		Order("number ASC").
		Limit(limit).
		Find(&ret)
	if result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}
