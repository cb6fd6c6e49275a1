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

package metadata

import (
	"fmt"

	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/plugin"
	"github.com/blinklabs-io/certchain/database/types"
	"gorm.io/gorm"
)

type MetadataStore interface {
	plugin.Plugin

	// Database
	Close() error
	DB() *gorm.DB
	GetCommitTimestamp() (int64, error)
	SetCommitTimestamp(int64, types.Txn) error
	Transaction() types.Txn

	// Event log
	AppendTransitions([]models.Transition, types.Txn) error
	LastTransitionPosition(types.Txn) (uint64, error)
	ScanTransitions(models.TransitionFilter, types.Txn) ([]models.Transition, error)
	CountTransitions(models.TransitionFilter, types.Txn) (int64, error)

	// Blocks
	AddBlock(models.Block, types.Txn) error
	GetBlock(uint64, types.Txn) (models.Block, error)
	GetTipBlock(types.Txn) (models.Block, error)
	GetBlocks(uint64, int, types.Txn) ([]models.Block, error)
}

// New returns the started metadata plugin selected by name
func New(pluginName string, opts plugin.Options) (MetadataStore, error) {
	p, err := plugin.StartPlugin(plugin.PluginTypeMetadata, pluginName, opts)
	if err != nil {
		return nil, err
	}
	metadataStore, ok := p.(MetadataStore)
	if !ok {
		_ = p.Stop()
		return nil, fmt.Errorf(
			"plugin '%s' does not implement MetadataStore interface",
			pluginName,
		)
	}
	return metadataStore, nil
}
