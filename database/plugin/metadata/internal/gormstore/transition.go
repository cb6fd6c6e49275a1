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
	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/types"
	"gorm.io/gorm"
)

// LastTransitionPosition returns the position of the newest transition, or 0
// for an empty log
func (s *Store) LastTransitionPosition(txn types.Txn) (uint64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var last uint64
	result := db.Model(&models.Transition{}).
		Select("COALESCE(MAX(position), 0)").
		Scan(&last)
	if result.Error != nil {
		return 0, result.Error
	}
	return last, nil
}

// AppendTransitions assigns the next positions to the given transitions and
// inserts them. The slice elements are updated in place.
func (s *Store) AppendTransitions(
	transitions []models.Transition,
	txn types.Txn,
) error {
	if len(transitions) == 0 {
		return nil
	}
	db, err := s.resolveDB(txn)
	if err != nil {
		return err
	}
	last, err := s.LastTransitionPosition(txn)
	if err != nil {
		return err
	}
	for i := range transitions {
		transitions[i].Position = last + uint64(i) + 1 // #nosec G115
	}
	return db.Create(&transitions).Error
}

// ScanTransitions returns the transitions matching the filter ordered by position
func (s *Store) ScanTransitions(
	filter models.TransitionFilter,
	txn types.Txn,
) ([]models.Transition, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return nil, err
	}
	query := filterTransitions(db, filter)
	if filter.Descending {
		query = query.Order("position DESC")
	} else {
		query = query.Order("position ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var ret []models.Transition
	if result := query.Find(&ret); result.Error != nil {
		return nil, result.Error
	}
	return ret, nil
}

// CountTransitions returns how many transitions match the filter. Limit,
// offset and order are ignored.
func (s *Store) CountTransitions(
	filter models.TransitionFilter,
	txn types.Txn,
) (int64, error) {
	db, err := s.resolveDB(txn)
	if err != nil {
		return 0, err
	}
	var count int64
	if result := filterTransitions(db, filter).Count(&count); result.Error != nil {
		return 0, result.Error
	}
	return count, nil
}

func filterTransitions(db *gorm.DB, filter models.TransitionFilter) *gorm.DB {
	query := db.Model(&models.Transition{})
	if len(filter.CertificateHash) > 0 {
		query = query.Where("certificate_hash = ?", filter.CertificateHash)
	}
	if len(filter.Actions) > 0 {
		// []uint8 would bind as a single blob, so widen the values
		actions := make([]int, len(filter.Actions))
		for i, a := range filter.Actions {
			actions[i] = int(a)
		}
		query = query.Where("action IN ?", actions)
	}
	if filter.StudentID != "" {
		query = query.Where("student_id = ?", filter.StudentID)
	}
	if filter.FromPosition > 0 {
		query = query.Where("position >= ?", filter.FromPosition)
	}
	if filter.ToPosition > 0 {
		query = query.Where("position <= ?", filter.ToPosition)
	}
	return query
}
