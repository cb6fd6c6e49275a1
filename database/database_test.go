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

package database_test

import (
	"errors"
	"testing"
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database"
	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/types"
	"github.com/blinklabs-io/certchain/internal/test/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRecord(hash byte) cert.Record {
	return cert.NewRecord(
		cert.Hash{hash},
		cert.Content{
			Name:           "Cert",
			Classification: cert.ClassificationGood,
			StudentID:      "S1",
			StudentName:    "Alice",
			DateOfBirth:    946684800,
		},
		cert.Address{0x01},
		time.Unix(1700000000, 0),
	)
}

func TestCertificateLifecycle(t *testing.T) {
	db := newTestDatabase(t)
	rec := testRecord(0xaa)

	_, err := db.GetCertificate(rec.Hash, nil)
	require.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, db.PutCertificate(rec, nil))
	got, err := db.GetCertificate(rec.Hash, nil)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.ErrorIs(t, db.PutCertificate(rec, nil), types.ErrAlreadyExists)

	require.NoError(t, db.MarkCertificateRevoked(rec.Hash, nil))
	got, err = db.GetCertificate(rec.Hash, nil)
	require.NoError(t, err)
	assert.True(t, got.Revoked)
	assert.Equal(t, rec.Content(), got.Content())

	require.ErrorIs(
		t,
		db.MarkCertificateRevoked(rec.Hash, nil),
		types.ErrAlreadyRevoked,
	)
	require.ErrorIs(
		t,
		db.MarkCertificateRevoked(cert.Hash{0x01}, nil),
		types.ErrNotFound,
	)
}

func TestPutCertificateRejectsSentinel(t *testing.T) {
	db := newTestDatabase(t)
	require.Error(t, db.PutCertificate(cert.Record{Hash: cert.Hash{0x01}}, nil))
}

func TestTxnAtomicity(t *testing.T) {
	db := newTestDatabase(t)
	rec := testRecord(0xbb)
	errBoom := errors.New("boom")

	err := db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.PutCertificate(rec, txn); err != nil {
			return err
		}
		if err := db.AppendTransitions(
			[]models.Transition{{CertificateHash: rec.Hash.Bytes()}},
			txn,
		); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = db.GetCertificate(rec.Hash, nil)
	require.ErrorIs(t, err, types.ErrNotFound)
	last, err := db.LastTransitionPosition(nil)
	require.NoError(t, err)
	assert.Zero(t, last)

	// The same writes commit together
	events := []models.Transition{{CertificateHash: rec.Hash.Bytes()}}
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.PutCertificate(rec, txn); err != nil {
			return err
		}
		return db.AppendTransitions(events, txn)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), events[0].Position)
	_, err = db.GetCertificate(rec.Hash, nil)
	require.NoError(t, err)
}

func TestOwner(t *testing.T) {
	db := newTestDatabase(t)
	_, err := db.GetOwner(nil)
	require.ErrorIs(t, err, types.ErrNotFound)
	owner := cert.Address{0x0a, 0x0b}
	require.NoError(t, db.SetOwner(owner, nil))
	got, err := db.GetOwner(nil)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
	require.ErrorIs(t, db.SetOwner(cert.Address{0x0c}, nil), types.ErrAlreadyExists)
}

func TestReadOnlyTxnRejectsWrites(t *testing.T) {
	db := newTestDatabase(t)
	txn := db.Transaction(false)
	defer txn.Release()
	require.ErrorIs(t, db.PutCertificate(testRecord(0x01), txn), types.ErrReadOnlyTxn)
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dir})
	require.NoError(t, err)
	rec := testRecord(0xcc)
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.PutCertificate(rec, txn); err != nil {
			return err
		}
		return db.AddBlock(models.Block{Number: 1, Hash: []byte{0x01}}, txn)
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = database.New(&database.Config{DataDir: dir})
	require.NoError(t, err)
	defer db.Close()
	got, err := db.GetCertificate(rec.Hash, nil)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	tip, err := db.GetTipBlock(nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tip.Number)
}

func TestPartialCommitDetectedOnReopen(t *testing.T) {
	fault := testutil.RegisterFaultyMetadataPlugin("sqlite-commit-fault")
	dir := t.TempDir()
	db, err := database.New(&database.Config{
		DataDir:        dir,
		MetadataPlugin: "sqlite-commit-fault",
	})
	require.NoError(t, err)
	first := testRecord(0xd1)
	require.NoError(t, db.Transaction(true).Do(func(txn *database.Txn) error {
		return db.PutCertificate(first, txn)
	}))

	// Commit timestamps have millisecond resolution
	time.Sleep(5 * time.Millisecond)
	fault.Arm()
	second := testRecord(0xd2)
	err = db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := db.PutCertificate(second, txn); err != nil {
			return err
		}
		return db.AppendTransitions(
			[]models.Transition{{CertificateHash: second.Hash.Bytes()}},
			txn,
		)
	})
	require.ErrorIs(t, err, database.ErrPartialCommit)
	fault.Disarm()
	// The blob side landed without its event
	_, err = db.GetCertificate(second.Hash, nil)
	require.NoError(t, err)
	last, err := db.LastTransitionPosition(nil)
	require.NoError(t, err)
	assert.Zero(t, last)
	require.NoError(t, db.Close())

	_, err = database.New(&database.Config{DataDir: dir})
	var tsErr database.CommitTimestampError
	require.ErrorAs(t, err, &tsErr)
}

func TestUnknownPlugin(t *testing.T) {
	_, err := database.New(&database.Config{MetadataPlugin: "nope"})
	require.Error(t, err)
}
