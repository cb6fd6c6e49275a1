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


package testutil

import (
	"errors"
	"sync/atomic"

	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/plugin"
	"github.com/blinklabs-io/certchain/database/plugin/metadata"
	"github.com/blinklabs-io/certchain/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/certchain/database/types"
)

var ErrInjectedCommit = errors.New("injected metadata commit failure")

// CommitFault makes metadata commits fail while armed
type CommitFault struct {
	armed atomic.Bool
}

func (f *CommitFault) Arm() {
	f.armed.Store(true)
}

func (f *CommitFault) Disarm() {
	f.armed.Store(false)
}

// RegisterFaultyMetadataPlugin registers a sqlite metadata plugin under name
// whose commits fail while the returned fault is armed
func RegisterFaultyMetadataPlugin(name string) *CommitFault {
	fault := &CommitFault{}
	plugin.Register(plugin.PluginEntry{
		Type:        plugin.PluginTypeMetadata,
		Name:        name,
		Description: "SQLite with injectable commit failures",
		NewFromOptionsFunc: func(opts plugin.Options) plugin.Plugin {
			p := sqlite.NewFromOptions(opts)
			store, ok := p.(metadata.MetadataStore)
			if !ok {
				return p
			}
			return &faultyStore{MetadataStore: store, fault: fault}
		},
	})
	return fault
}

type faultyTxn struct {
	types.Txn
	fault *CommitFault
}

func (t *faultyTxn) Commit() error {
	if t.fault.armed.Load() {
		return ErrInjectedCommit
	}
	return t.Txn.Commit()
}

func unwrapTxn(txn types.Txn) types.Txn {
	if f, ok := txn.(*faultyTxn); ok {
		return f.Txn
	}
	return txn
}

type faultyStore struct {
	metadata.MetadataStore
	fault *CommitFault
}

func (s *faultyStore) Transaction() types.Txn {
	return &faultyTxn{Txn: s.MetadataStore.Transaction(), fault: s.fault}
}

func (s *faultyStore) SetCommitTimestamp(ts int64, txn types.Txn) error {
	return s.MetadataStore.SetCommitTimestamp(ts, unwrapTxn(txn))
}

func (s *faultyStore) AppendTransitions(
	transitions []models.Transition,
	txn types.Txn,
) error {
	return s.MetadataStore.AppendTransitions(transitions, unwrapTxn(txn))
}

func (s *faultyStore) LastTransitionPosition(txn types.Txn) (uint64, error) {
	return s.MetadataStore.LastTransitionPosition(unwrapTxn(txn))
}

func (s *faultyStore) ScanTransitions(
	filter models.TransitionFilter,
	txn types.Txn,
) ([]models.Transition, error) {
	return s.MetadataStore.ScanTransitions(filter, unwrapTxn(txn))
}

func (s *faultyStore) CountTransitions(
	filter models.TransitionFilter,
	txn types.Txn,
) (int64, error) {
	return s.MetadataStore.CountTransitions(filter, unwrapTxn(txn))
}

func (s *faultyStore) AddBlock(block models.Block, txn types.Txn) error {
	return s.MetadataStore.AddBlock(block, unwrapTxn(txn))
}

func (s *faultyStore) GetBlock(number uint64, txn types.Txn) (models.Block, error) {
	return s.MetadataStore.GetBlock(number, unwrapTxn(txn))
}

func (s *faultyStore) GetTipBlock(txn types.Txn) (models.Block, error) {
	return s.MetadataStore.GetTipBlock(unwrapTxn(txn))
}

func (s *faultyStore) GetBlocks(
	from uint64,
	limit int,
	txn types.Txn,
) ([]models.Block, error) {
	return s.MetadataStore.GetBlocks(from, limit, unwrapTxn(txn))
}
