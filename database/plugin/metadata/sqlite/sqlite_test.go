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

package sqlite_test

import (
	"testing"

	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/plugin/metadata/sqlite"
	"github.com/blinklabs-io/certchain/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.MetadataStoreSqlite {
	t.Helper()
	store, err := sqlite.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func appendCommitted(
	t *testing.T,
	store *sqlite.MetadataStoreSqlite,
	events []models.Transition,
) {
	t.Helper()
	txn := store.Transaction()
	require.NoError(t, store.AppendTransitions(events, txn))
	require.NoError(t, txn.Commit())
}

func TestAppendAssignsPositions(t *testing.T) {
	store := newTestStore(t)
	first := []models.Transition{
		{CertificateHash: []byte{0x01}, Action: 0, StudentID: "S1"},
		{CertificateHash: []byte{0x02}, Action: 0, StudentID: "S2"},
	}
	appendCommitted(t, store, first)
	assert.Equal(t, uint64(1), first[0].Position)
	assert.Equal(t, uint64(2), first[1].Position)

	second := []models.Transition{
		{CertificateHash: []byte{0x01}, Action: 1},
	}
	appendCommitted(t, store, second)
	assert.Equal(t, uint64(3), second[0].Position)

	last, err := store.LastTransitionPosition(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last)
}

func TestScanTransitionsFilters(t *testing.T) {
	store := newTestStore(t)
	appendCommitted(t, store, []models.Transition{
		{CertificateHash: []byte{0x01}, Action: 0, StudentID: "S1"},
		{CertificateHash: []byte{0x02}, Action: 0, StudentID: "S1"},
		{CertificateHash: []byte{0x03}, Action: 0, StudentID: "S2"},
		{CertificateHash: []byte{0x01}, Action: 1},
	})

	all, err := store.ScanTransitions(models.TransitionFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, ev := range all {
		assert.Equal(t, uint64(i+1), ev.Position)
	}

	byHash, err := store.ScanTransitions(
		models.TransitionFilter{CertificateHash: []byte{0x01}},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, byHash, 2)
	assert.Equal(t, uint8(1), byHash[1].Action)

	revoked, err := store.ScanTransitions(
		models.TransitionFilter{Actions: []uint8{1}},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, revoked, 1)
	assert.Equal(t, uint64(4), revoked[0].Position)

	student, err := store.ScanTransitions(
		models.TransitionFilter{StudentID: "S1"},
		nil,
	)
	require.NoError(t, err)
	assert.Len(t, student, 2)

	window, err := store.ScanTransitions(
		models.TransitionFilter{FromPosition: 2, ToPosition: 3},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, uint64(2), window[0].Position)

	page, err := store.ScanTransitions(
		models.TransitionFilter{Descending: true, Limit: 2, Offset: 1},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(3), page[0].Position)
	assert.Equal(t, uint64(2), page[1].Position)

	count, err := store.CountTransitions(
		models.TransitionFilter{Actions: []uint8{0}, Limit: 1},
		nil,
	)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestRollbackDiscardsTransitions(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, store.AppendTransitions(
		[]models.Transition{{CertificateHash: []byte{0x01}}},
		txn,
	))
	require.NoError(t, txn.Rollback())
	all, err := store.ScanTransitions(models.TransitionFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBlocks(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetTipBlock(nil)
	require.ErrorIs(t, err, types.ErrNotFound)

	txn := store.Transaction()
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, store.AddBlock(models.Block{
			Number:    i,
			Hash:      []byte{byte(i)},
			Timestamp: int64(1700000000 + i),
		}, txn))
	}
	require.NoError(t, txn.Commit())

	tip, err := store.GetTipBlock(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), tip.Number)

	blk, err := store.GetBlock(2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1700000002), blk.Timestamp)

	_, err = store.GetBlock(9, nil)
	require.ErrorIs(t, err, types.ErrNotFound)

	blocks, err := store.GetBlocks(2, 10, nil)
	require.NoError(t, err)
	assert.Len(t, blocks, 2)
}

func TestCommitTimestamp(t *testing.T) {
	store := newTestStore(t)
	ts, err := store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Zero(t, ts)
	for _, val := range []int64{100, 200} {
		txn := store.Transaction()
		require.NoError(t, store.SetCommitTimestamp(val, txn))
		require.NoError(t, txn.Commit())
	}
	ts, err = store.GetCommitTimestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(200), ts)
}

func TestMemoryStoresAreIsolated(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)
	appendCommitted(t, a, []models.Transition{{CertificateHash: []byte{0x01}}})
	all, err := b.ScanTransitions(models.TransitionFilter{}, nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestOnDiskStore(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.New(sqlite.WithDataDir(dir))
	require.NoError(t, err)
	appendCommitted(t, store, []models.Transition{{CertificateHash: []byte{0x01}}})
	require.NoError(t, store.Close())
	// Closing twice is harmless
	require.NoError(t, store.Close())

	store, err = sqlite.New(sqlite.WithDataDir(dir))
	require.NoError(t, err)
	defer store.Close()
	last, err := store.LastTransitionPosition(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), last)
}

func TestFinishedTxnRejected(t *testing.T) {
	store := newTestStore(t)
	txn := store.Transaction()
	require.NoError(t, txn.Commit())
	_, err := store.ScanTransitions(models.TransitionFilter{}, txn)
	require.Error(t, err)
}

func TestMetadataMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	store, err := sqlite.New(sqlite.WithPromRegistry(reg))
	require.NoError(t, err)
	defer store.Close()
	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
