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

// Block groups the transitions committed by a single ledger transaction.
// Hash links each block to its predecessor.
type Block struct {
	Number     uint64 `gorm:"primaryKey;autoIncrement:false"`
	Hash       []byte `gorm:"uniqueIndex;size:32"`
	PrevHash   []byte `gorm:"size:32"`
	Timestamp  int64
	EventCount uint32
}

func (Block) TableName() string {
	return "block"
}
