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

package postgres

import (
	"os"
	"testing"

	"github.com/blinklabs-io/certchain/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNFromOptions(t *testing.T) {
	p, err := New(
		WithHost("db.example"),
		WithPort(6543),
		WithUser("certchain"),
		WithPassword("secret"),
		WithDatabase("registry"),
	)
	require.NoError(t, err)
	assert.Equal(
		t,
		"host=db.example user=certchain password=secret dbname=registry port=6543 sslmode=disable TimeZone=UTC",
		p.DSN(),
	)
}

func TestDSNOverride(t *testing.T) {
	p, err := New(WithHost("ignored"), WithDSN("  postgres://u:p@h/db  "))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/db", p.DSN())
	// Close before Start is a no-op
	require.NoError(t, p.Close())
}

// TestPostgresTransitions runs against a live server when
// CERTCHAIN_TEST_POSTGRES_DSN is set
func TestPostgresTransitions(t *testing.T) {
	dsn := os.Getenv("CERTCHAIN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CERTCHAIN_TEST_POSTGRES_DSN not set")
	}
	p, err := New(WithDSN(dsn))
	require.NoError(t, err)
	require.NoError(t, p.Start())
	defer p.Stop() //nolint:errcheck
	require.NoError(t, p.DB().Exec("DELETE FROM transition").Error)

	txn := p.Transaction()
	events := []models.Transition{
		{CertificateHash: []byte{0x01}, Action: 0, StudentID: "S1"},
		{CertificateHash: []byte{0x01}, Action: 1},
	}
	require.NoError(t, p.AppendTransitions(events, txn))
	require.NoError(t, txn.Commit())
	assert.Equal(t, uint64(1), events[0].Position)
	assert.Equal(t, uint64(2), events[1].Position)

	ret, err := p.ScanTransitions(
		models.TransitionFilter{Actions: []uint8{1}},
		nil,
	)
	require.NoError(t, err)
	require.Len(t, ret, 1)
	assert.Equal(t, uint64(2), ret[0].Position)
}
