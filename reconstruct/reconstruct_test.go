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

package reconstruct_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/certchain/cache"
	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/database"
	"github.com/blinklabs-io/certchain/reconstruct"
	"github.com/blinklabs-io/certchain/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner    = cert.Address{0x0a}
	attacker = cert.Address{0x0e}
	baseTime = time.Unix(1700000000, 0).UTC()
)

type testEnv struct {
	chain    *chain.Chain
	registry *registry.Registry
	recon    *reconstruct.Reconstructor
}

// stepClock advances one minute per call
func stepClock() func() time.Time {
	var mu sync.Mutex
	next := baseTime
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		ret := next
		next = next.Add(time.Minute)
		return ret
	}
}

func newTestEnv(t *testing.T, opts ...reconstruct.ReconstructorOptionFunc) *testEnv {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c, err := chain.New(db, chain.WithClock(stepClock()))
	require.NoError(t, err)
	r, err := registry.New(context.Background(), c, owner)
	require.NoError(t, err)
	return &testEnv{
		chain:    c,
		registry: r,
		recon:    reconstruct.New(c, opts...),
	}
}

func content(name, studentID string) cert.Content {
	dob, _ := cert.ParseDate("2000-01-01")
	return cert.Content{
		Name:           name,
		Classification: cert.ClassificationExcellent,
		StudentID:      studentID,
		StudentName:    "Alice",
		DateOfBirth:    dob,
	}
}

func (e *testEnv) issue(t *testing.T, hash cert.Hash, c cert.Content) registry.IssueResult {
	t.Helper()
	res, err := e.registry.Issue(context.Background(), owner, registry.IssueRequest{Hash: hash, Content: c})
	require.NoError(t, err)
	return res
}

func TestVerifyNeverIssued(t *testing.T) {
	env := newTestEnv(t)
	for _, h := range []cert.Hash{{}, {0x01}, {0xff, 0xff}} {
		_, err := env.recon.VerifyByHash(context.Background(), h)
		require.ErrorIs(t, err, reconstruct.ErrNotFound)
	}
	env.issue(t, cert.Hash{0x02}, content("Cert", "S1"))
	_, err := env.recon.VerifyByHash(context.Background(), cert.Hash{0x01})
	require.ErrorIs(t, err, reconstruct.ErrNotFound)
}

func TestIssueRevokeScenario(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h1 := cert.Hash{0x01}
	issued := env.issue(t, h1, content("Cert A", "S1"))

	res, err := env.recon.VerifyByHash(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, "Cert A", res.Name)
	assert.Equal(t, cert.ClassificationExcellent, res.Classification)
	assert.False(t, res.Revoked)
	assert.Equal(t, "S1", res.StudentID)
	assert.Equal(t, "2000-01-01", res.DateOfBirth.Format(time.DateOnly))
	assert.Equal(t, issued.Receipt.Block.Timestamp, res.IssuedAt)
	assert.Nil(t, res.RevokedAt)

	receipt, err := env.registry.Revoke(ctx, owner, h1)
	require.NoError(t, err)
	res, err = env.recon.VerifyByHash(ctx, h1)
	require.NoError(t, err)
	assert.True(t, res.Revoked)
	require.NotNil(t, res.RevokedAt)
	assert.Equal(t, receipt.Block.Timestamp, *res.RevokedAt)
	assert.True(t, res.RevokedAt.After(res.IssuedAt))

	_, err = env.registry.Revoke(ctx, owner, h1)
	require.ErrorIs(t, err, registry.ErrAlreadyRevoked)
	res, err = env.recon.VerifyByHash(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, receipt.Block.Timestamp, *res.RevokedAt)
}

func TestAttackerIssueLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	h2 := cert.Hash{0x02}
	_, err := env.registry.Issue(
		context.Background(),
		attacker,
		registry.IssueRequest{Hash: h2, Content: content("Cert", "S1")},
	)
	require.ErrorIs(t, err, registry.ErrUnauthorized)
	_, err = env.recon.VerifyByHash(context.Background(), h2)
	require.ErrorIs(t, err, reconstruct.ErrNotFound)
	history, err := env.recon.HistoryAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFindByStudentID(t *testing.T) {
	env := newTestEnv(t, reconstruct.WithPageSize(2))
	ctx := context.Background()
	a := cert.Hash{0x0a}
	b := cert.Hash{0x0b}
	other := cert.Hash{0x0c}
	c := cert.Hash{0x0d}
	env.issue(t, a, content("A", "S1"))
	env.issue(t, other, content("Other", "S2"))
	issuedB := env.issue(t, b, content("B", "S1"))
	env.issue(t, c, content("C", "S1"))
	revoke, err := env.registry.Revoke(ctx, owner, a)
	require.NoError(t, err)

	found, err := env.recon.FindByStudentID(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, a, found[0].Hash)
	assert.Equal(t, cert.ActionRevoked, found[0].LatestAction)
	require.NotNil(t, found[0].RevokedAt)
	assert.Equal(t, revoke.Block.Timestamp, *found[0].RevokedAt)
	assert.Equal(t, b, found[1].Hash)
	assert.Equal(t, cert.ActionIssued, found[1].LatestAction)
	assert.Equal(t, issuedB.Receipt.Block.Timestamp, found[1].IssuedAt)
	assert.Nil(t, found[1].RevokedAt)
	assert.Equal(t, c, found[2].Hash)

	found, err = env.recon.FindByStudentID(ctx, "S9")
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = env.recon.FindByStudentID(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, found)
}

// Events written straight to the ledger model partial or replayed log data
// that the registry would never produce
func TestLookupToleratesIrregularLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	h := cert.Hash{0x0f}
	_, err := env.chain.SubmitTransaction(ctx, func(tx *chain.Tx) error {
		tx.Emit(chain.Event{CertificateHash: h, Action: cert.ActionRevoked, Actor: owner})
		return nil
	})
	require.NoError(t, err)
	_, err = env.recon.LookupByHash(ctx, h)
	require.ErrorIs(t, err, reconstruct.ErrNotFound)

	issued := env.issue(t, h, content("X", "S1"))
	// A replayed issuance for the same hash and student
	_, err = env.chain.SubmitTransaction(ctx, func(tx *chain.Tx) error {
		tx.Emit(chain.Event{CertificateHash: h, Action: cert.ActionIssued, StudentID: "S1", Actor: owner})
		return nil
	})
	require.NoError(t, err)

	lookup, err := env.recon.LookupByHash(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, issued.Receipt.Block.Timestamp, lookup.IssuedAt)
	assert.Equal(t, "S1", lookup.StudentID)
	assert.Nil(t, lookup.RevokedAt)
	assert.Len(t, lookup.Events, 2)

	found, err := env.recon.FindByStudentID(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, h, found[0].Hash)
}

func TestHistory(t *testing.T) {
	env := newTestEnv(t, reconstruct.WithPageSize(1))
	ctx := context.Background()
	env.issue(t, cert.Hash{0x01}, content("A", "S1"))
	env.issue(t, cert.Hash{0x02}, content("B", "S2"))
	_, err := env.registry.Revoke(ctx, owner, cert.Hash{0x01})
	require.NoError(t, err)

	all, err := env.recon.HistoryAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, entry := range all {
		assert.Equal(t, uint64(i+1), entry.Position)
		assert.Equal(t, owner, entry.Actor)
	}
	assert.Equal(t, cert.ActionRevoked, all[2].Action)
	assert.Equal(t, "S1", all[0].StudentID)

	issued, err := env.recon.History(ctx, reconstruct.HistoryFilter{
		Actions:    []cert.Action{cert.ActionIssued},
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, issued, 2)
	assert.Equal(t, cert.Hash{0x02}, issued[0].Hash)

	count, err := env.recon.HistoryCount(ctx, reconstruct.HistoryFilter{
		Actions: []cert.Action{cert.ActionRevoked},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	page, err := env.recon.History(ctx, reconstruct.HistoryFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, uint64(2), page[0].Position)
}

func TestVerifyCache(t *testing.T) {
	mem, err := cache.NewMemory(100, time.Minute)
	require.NoError(t, err)
	defer mem.Close()
	reg := prometheus.NewRegistry()
	env := newTestEnv(t, reconstruct.WithCache(mem), reconstruct.WithPromRegistry(reg))
	ctx := context.Background()
	h := cert.Hash{0x01}
	env.issue(t, h, content("A", "S1"))

	first, err := env.recon.VerifyByHash(ctx, h)
	require.NoError(t, err)
	second, err := env.recon.VerifyByHash(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A new block moves the tip, so the revoked state is read fresh
	_, err = env.registry.Revoke(ctx, owner, h)
	require.NoError(t, err)
	third, err := env.recon.VerifyByHash(ctx, h)
	require.NoError(t, err)
	assert.True(t, third.Revoked)
	require.NotNil(t, third.RevokedAt)
	fourth, err := env.recon.VerifyByHash(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, third, fourth)

	expected := `
# HELP reconstruct_cache_lookups_total verification cache lookups, by result
# TYPE reconstruct_cache_lookups_total counter
reconstruct_cache_lookups_total{result="hit"} 2
reconstruct_cache_lookups_total{result="miss"} 2
`
	require.NoError(t, testutil.CollectAndCompare(
		reg,
		strings.NewReader(expected),
		"reconstruct_cache_lookups_total",
	))
}

func TestVerifyCacheSharedBetweenLedgers(t *testing.T) {
	mem, err := cache.NewMemory(100, time.Minute)
	require.NoError(t, err)
	defer mem.Close()
	ctx := context.Background()
	ledgerA := newTestEnv(t, reconstruct.WithCache(mem))
	ledgerB := newTestEnv(t, reconstruct.WithCache(mem))

	onlyInA := cert.Hash{0x42}
	ledgerA.issue(t, onlyInA, content("A", "S1"))
	res, err := ledgerA.recon.VerifyByHash(ctx, onlyInA)
	require.NoError(t, err)
	assert.Equal(t, "A", res.Name)

	// Same height, different history
	ledgerB.issue(t, cert.Hash{0x43}, content("B", "S2"))
	require.Equal(t, ledgerA.chain.Tip().BlockNumber, ledgerB.chain.Tip().BlockNumber)
	_, err = ledgerB.recon.VerifyByHash(ctx, onlyInA)
	require.ErrorIs(t, err, reconstruct.ErrNotFound)

	// A reset ledger starts over at the same numbers
	reset := newTestEnv(t, reconstruct.WithCache(mem))
	reset.issue(t, cert.Hash{0x44}, content("C", "S3"))
	_, err = reset.recon.VerifyByHash(ctx, onlyInA)
	require.ErrorIs(t, err, reconstruct.ErrNotFound)
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	const certs = 10
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range certs {
			h := cert.Hash{0x50, byte(i)}
			_, err := env.registry.Issue(ctx, owner, registry.IssueRequest{
				Hash:    h,
				Content: content("C", "S1"),
			})
			assert.NoError(t, err)
			_, err = env.registry.Revoke(ctx, owner, h)
			assert.NoError(t, err)
		}
	}()
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range certs {
				res, err := env.recon.VerifyByHash(ctx, cert.Hash{0x50, byte(i)})
				if err != nil {
					assert.ErrorIs(t, err, reconstruct.ErrNotFound)
					continue
				}
				// A record is never observed half written
				assert.Equal(t, "C", res.Name)
				assert.Equal(t, "S1", res.StudentID)
			}
		}()
	}
	wg.Wait()
	found, err := env.recon.FindByStudentID(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, found, certs)
	for _, f := range found {
		assert.Equal(t, cert.ActionRevoked, f.LatestAction)
	}
}
