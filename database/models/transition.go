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

package models

// Transition is one entry of the append-only certificate event log
type Transition struct {
	// Position is global, 1-based and strictly increasing
	Position        uint64 `gorm:"primaryKey;autoIncrement:false"`
	BlockNumber     uint64 `gorm:"index"`
	LogIndex        uint32
	CertificateHash []byte `gorm:"index;size:32"`
	Action          uint8  `gorm:"index"`
	// StudentID is only set on issuance transitions
	StudentID string `gorm:"index"`
	Actor     []byte `gorm:"size:20"`
	Timestamp int64
}

func (Transition) TableName() string {
	return "transition"
}

// TransitionFilter selects a range of the event log. Zero values do not
// constrain the query. ToPosition 0 means the current tip.
type TransitionFilter struct {
	CertificateHash []byte
	Actions         []uint8
	StudentID       string
	FromPosition    uint64
	ToPosition      uint64
	Limit           int
	Offset          int
	Descending      bool
}
