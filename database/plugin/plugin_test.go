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

package plugin_test

import (
	"errors"
	"testing"

	"github.com/blinklabs-io/certchain/database/plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPlugin struct {
	opts    plugin.Options
	started bool
}

func (m *mockPlugin) Start() error { m.started = true; return nil }
func (m *mockPlugin) Stop() error  { return nil }

func TestRegisterAndStart(t *testing.T) {
	name := "test-plugin-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeBlob,
		Name: name,
		NewFromOptionsFunc: func(opts plugin.Options) plugin.Plugin {
			return &mockPlugin{opts: opts}
		},
	})

	p, err := plugin.StartPlugin(
		plugin.PluginTypeBlob,
		name,
		plugin.Options{DataDir: "/tmp/x"},
	)
	require.NoError(t, err)
	mp, ok := p.(*mockPlugin)
	require.True(t, ok)
	assert.True(t, mp.started)
	assert.Equal(t, "/tmp/x", mp.opts.DataDir)

	found := false
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeBlob) {
		if entry.Name == name {
			found = true
		}
	}
	assert.True(t, found)
	for _, entry := range plugin.GetPlugins(plugin.PluginTypeMetadata) {
		assert.NotEqual(t, name, entry.Name)
	}
}

func TestStartPluginNotFound(t *testing.T) {
	_, err := plugin.StartPlugin(
		plugin.PluginTypeMetadata,
		"does-not-exist",
		plugin.Options{},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata plugin 'does-not-exist' not found")
}

func TestStartPluginDeferredError(t *testing.T) {
	name := "error-plugin-" + t.Name()
	errBoom := errors.New("boom")
	plugin.Register(plugin.PluginEntry{
		Type: plugin.PluginTypeMetadata,
		Name: name,
		NewFromOptionsFunc: func(plugin.Options) plugin.Plugin {
			return plugin.NewErrorPlugin(errBoom)
		},
	})
	_, err := plugin.StartPlugin(plugin.PluginTypeMetadata, name, plugin.Options{})
	require.ErrorIs(t, err, errBoom)
}

func TestPluginTypeName(t *testing.T) {
	assert.Equal(t, "blob", plugin.PluginTypeName(plugin.PluginTypeBlob))
	assert.Equal(t, "metadata", plugin.PluginTypeName(plugin.PluginTypeMetadata))
	assert.Equal(t, "unknown", plugin.PluginTypeName(plugin.PluginType(99)))
}
