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

package chain_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/database"
	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/event"
	"github.com/blinklabs-io/certchain/internal/test/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOwner = cert.Address{0x0a}

func newTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(&database.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestChain(
	t *testing.T,
	opts ...chain.ChainOptionFunc,
) (*chain.Chain, *database.Database) {
	t.Helper()
	db := newTestDatabase(t)
	c, err := chain.New(db, opts...)
	require.NoError(t, err)
	owner, err := c.Genesis(context.Background(), testOwner)
	require.NoError(t, err)
	require.Equal(t, testOwner, owner)
	return c, db
}

func issueFunc(hash cert.Hash) chain.TxFunc {
	return func(tx *chain.Tx) error {
		rec := cert.NewRecord(
			hash,
			cert.Content{Name: "Cert", StudentID: "S1"},
			testOwner,
			tx.Timestamp(),
		)
		if err := tx.PutCertificate(rec); err != nil {
			return err
		}
		tx.Emit(chain.Event{
			CertificateHash: hash,
			Action:          cert.ActionIssued,
			StudentID:       "S1",
			Actor:           testOwner,
		})
		return nil
	}
}

func TestGenesisIdempotent(t *testing.T) {
	c, _ := newTestChain(t)
	tip := c.Tip()
	assert.Equal(t, uint64(0), tip.BlockNumber)
	assert.False(t, tip.BlockHash.IsZero())

	// A different owner on a later call does not replace the stored one
	owner, err := c.Genesis(context.Background(), cert.Address{0x0b})
	require.NoError(t, err)
	assert.Equal(t, testOwner, owner)
	assert.Equal(t, tip, c.Tip())
}

func TestGenesisRequiresOwner(t *testing.T) {
	c, err := chain.New(newTestDatabase(t))
	require.NoError(t, err)
	_, err = c.Genesis(context.Background(), cert.ZeroAddress)
	require.ErrorIs(t, err, chain.ErrOwnerRequired)
}

func TestSubmitWithoutGenesis(t *testing.T) {
	c, err := chain.New(newTestDatabase(t))
	require.NoError(t, err)
	_, err = c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x01}))
	require.ErrorIs(t, err, chain.ErrNoGenesis)
}

func TestSubmitTransaction(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	c, _ := newTestChain(t, chain.WithClock(func() time.Time { return clock }))
	genesis := c.Tip()

	receipt, err := c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x01}))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), receipt.Block.Number)
	assert.Equal(t, genesis.BlockHash, receipt.Block.PrevHash)
	require.Len(t, receipt.Events, 1)
	ev := receipt.Events[0]
	assert.Equal(t, uint64(1), ev.Position)
	assert.Equal(t, uint64(1), ev.BlockNumber)
	assert.Equal(t, uint32(0), ev.LogIndex)
	assert.Equal(t, clock.UTC(), ev.Timestamp)

	tip := c.Tip()
	assert.Equal(t, receipt.Block.Hash, tip.BlockHash)
	assert.Equal(t, uint64(1), tip.LastPosition)

	var rec cert.Record
	err = c.ReadState(context.Background(), func(s chain.StateReader) error {
		var err error
		rec, err = s.Certificate(cert.Hash{0x01})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, clock.Unix(), rec.IssuedAt)

	ts, err := c.BlockTimestamp(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, clock.UTC(), ts)
	_, err = c.BlockTimestamp(context.Background(), 99)
	require.ErrorIs(t, err, chain.ErrBlockNotFound)
}

func TestSubmitRollsBackOnError(t *testing.T) {
	c, _ := newTestChain(t)
	before := c.Tip()
	errBoom := errors.New("boom")
	_, err := c.SubmitTransaction(context.Background(), func(tx *chain.Tx) error {
		if err := issueFunc(cert.Hash{0x02})(tx); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, before, c.Tip())

	events, err := c.QueryEvents(context.Background(), chain.EventQuery{})
	require.NoError(t, err)
	assert.Empty(t, events)
	err = c.ReadState(context.Background(), func(s chain.StateReader) error {
		rec, err := s.Certificate(cert.Hash{0x02})
		assert.False(t, rec.Exists())
		return err
	})
	require.Error(t, err)
}

func TestPartialCommitHaltsWrites(t *testing.T) {
	fault := testutil.RegisterFaultyMetadataPlugin("sqlite-commit-fault")
	db, err := database.New(&database.Config{MetadataPlugin: "sqlite-commit-fault"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	c, err := chain.New(db)
	require.NoError(t, err)
	_, err = c.Genesis(context.Background(), testOwner)
	require.NoError(t, err)
	tip := c.Tip()

	fault.Arm()
	_, err = c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x40}))
	require.ErrorIs(t, err, database.ErrPartialCommit)
	require.ErrorIs(t, err, testutil.ErrInjectedCommit)

	// The metadata store works again, but the stores already disagree
	fault.Disarm()
	_, err = c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x41}))
	require.ErrorIs(t, err, chain.ErrLedgerHalted)
	require.ErrorIs(t, err, database.ErrPartialCommit)
	assert.Equal(t, tip, c.Tip())
	events, err := c.QueryEvents(context.Background(), chain.EventQuery{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSubmitEmptyTransaction(t *testing.T) {
	c, _ := newTestChain(t)
	before := c.Tip()
	_, err := c.SubmitTransaction(context.Background(), func(*chain.Tx) error {
		return nil
	})
	require.ErrorIs(t, err, chain.ErrEmptyTransaction)
	assert.Equal(t, before, c.Tip())
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	now := time.Unix(1700000000, 0)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c, _ := newTestChain(t, chain.WithClock(clock))
	_, err := c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x01}))
	require.NoError(t, err)
	mu.Lock()
	now = now.Add(-time.Hour)
	mu.Unlock()
	receipt, err := c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x02}))
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), receipt.Block.Timestamp.Unix())
}

func TestConcurrentSubmitsAreTotallyOrdered(t *testing.T) {
	c, _ := newTestChain(t)
	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.SubmitTransaction(
				context.Background(),
				issueFunc(cert.Hash{0x10, byte(i)}),
			)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	events, err := c.QueryEvents(context.Background(), chain.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, writers)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Position)
		assert.Equal(t, uint64(i+1), ev.BlockNumber)
	}
	report, err := c.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(writers+1), report.Blocks)
	assert.Equal(t, c.Tip(), report.Tip)
}

func TestSubmitHonorsContext(t *testing.T) {
	c, _ := newTestChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x01}))
	require.ErrorIs(t, err, context.Canceled)

	// A writer blocked behind a long transaction gives up on deadline
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitTransaction(context.Background(), func(tx *chain.Tx) error {
			close(started)
			<-release
			return issueFunc(cert.Hash{0x02})(tx)
		})
		done <- err
	}()
	<-started
	ctx, cancel = context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x03}))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
	require.NoError(t, <-done)
}

type blockRecorder struct {
	ch chan event.Event
}

func (b *blockRecorder) Deliver(evt event.Event) error {
	select {
	case b.ch <- evt:
		return nil
	default:
		return errors.New("block recorder full")
	}
}

func (b *blockRecorder) Close() {}

func TestBlockEventsPublishedInOrder(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	rec := &blockRecorder{ch: make(chan event.Event, 8)}
	bus.RegisterSubscriber(chain.BlockEventType, rec)
	var ch <-chan event.Event = rec.ch
	c, _ := newTestChain(t, chain.WithEventBus(bus))
	for i := range 5 {
		_, err := c.SubmitTransaction(
			context.Background(),
			issueFunc(cert.Hash{0x20, byte(i)}),
		)
		require.NoError(t, err)
	}
	for i := range 5 {
		evt := testutil.RequireReceive(t, ch, time.Second, "block event")
		be, ok := evt.Data.(chain.BlockEvent)
		require.True(t, ok)
		assert.Equal(t, uint64(i+1), be.Block.Number)
		require.Len(t, be.Events, 1)
		assert.Equal(t, cert.Hash{0x20, byte(i)}, be.Events[0].CertificateHash)
	}
	testutil.RequireNoReceive(t, ch, 50*time.Millisecond, "extra block event")
}

func TestFullSubscriberDoesNotStallWrites(t *testing.T) {
	bus := event.NewEventBus(nil, nil)
	defer bus.Stop()
	rec := &blockRecorder{ch: make(chan event.Event, 1)}
	bus.RegisterSubscriber(chain.BlockEventType, rec)
	c, _ := newTestChain(t, chain.WithEventBus(bus))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range 5 {
			_, err := c.SubmitTransaction(
				context.Background(),
				issueFunc(cert.Hash{0x30, byte(i)}),
			)
			assert.NoError(t, err)
		}
	}()
	var doneCh <-chan struct{} = done
	testutil.RequireReceive(t, doneCh, 5*time.Second, "writes to finish")
	assert.Equal(t, uint64(5), c.Tip().BlockNumber)
	assert.Len(t, rec.ch, 1)
}

func TestQueryEventsFilters(t *testing.T) {
	c, _ := newTestChain(t)
	ctx := context.Background()
	_, err := c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x01}))
	require.NoError(t, err)
	_, err = c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x02}))
	require.NoError(t, err)
	_, err = c.SubmitTransaction(ctx, func(tx *chain.Tx) error {
		if err := tx.MarkRevoked(cert.Hash{0x01}); err != nil {
			return err
		}
		tx.Emit(chain.Event{
			CertificateHash: cert.Hash{0x01},
			Action:          cert.ActionRevoked,
			Actor:           testOwner,
		})
		return nil
	})
	require.NoError(t, err)

	hash := cert.Hash{0x01}
	events, err := c.QueryEvents(ctx, chain.EventQuery{CertificateHash: &hash})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, cert.ActionIssued, events[0].Action)
	assert.Equal(t, cert.ActionRevoked, events[1].Action)

	events, err = c.QueryEvents(ctx, chain.EventQuery{
		Actions:    []cert.Action{cert.ActionIssued},
		Descending: true,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, cert.Hash{0x02}, events[0].CertificateHash)

	events, err = c.QueryEvents(ctx, chain.EventQuery{StudentID: "S1", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Position)

	count, err := c.CountEvents(ctx, chain.EventQuery{StudentID: "S1", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	blocks, err := c.Blocks(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, blocks, 4)
}

func TestEventIterator(t *testing.T) {
	c, _ := newTestChain(t)
	ctx := context.Background()
	for i := range 7 {
		_, err := c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x30, byte(i)}))
		require.NoError(t, err)
	}
	it := chain.NewEventIterator(c, chain.EventQuery{FromPosition: 2}, 3)
	// Events committed after creation are outside the iterator range
	_, err := c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x31}))
	require.NoError(t, err)
	events, err := it.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, events, 6)
	assert.Equal(t, uint64(2), events[0].Position)
	assert.Equal(t, uint64(7), it.Position())
	_, err = it.Next(ctx)
	require.ErrorIs(t, err, chain.ErrIteratorEnd)

	empty := chain.NewEventIterator(c, chain.EventQuery{FromPosition: 100}, 0)
	_, err = empty.Next(ctx)
	require.ErrorIs(t, err, chain.ErrIteratorEnd)
}

func TestVerifyIntegrityDetectsTampering(t *testing.T) {
	c, db := newTestChain(t)
	ctx := context.Background()
	for i := range 3 {
		_, err := c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x40, byte(i)}))
		require.NoError(t, err)
	}
	report, err := c.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), report.Blocks)
	assert.Equal(t, uint64(3), report.Events)
	assert.Equal(t, testOwner, report.Owner)

	// Rewrite the actor of an event in place
	result := db.Metadata().DB().
		Model(&models.Transition{}).
		Where("position = ?", 2).
		Update("actor", cert.Address{0x0b}.Bytes())
	require.NoError(t, result.Error)
	_, err = c.VerifyIntegrity(ctx)
	var mismatch chain.BlockHashMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, uint64(2), mismatch.BlockNumber())
}

func TestVerifyIntegrityDetectsMissingEvents(t *testing.T) {
	c, db := newTestChain(t)
	ctx := context.Background()
	_, err := c.SubmitTransaction(ctx, issueFunc(cert.Hash{0x50}))
	require.NoError(t, err)
	result := db.Metadata().DB().
		Where("position = ?", 1).
		Delete(&models.Transition{})
	require.NoError(t, result.Error)
	_, err = c.VerifyIntegrity(ctx)
	var linkErr chain.ChainLinkError
	require.ErrorAs(t, err, &linkErr)
	assert.Equal(t, uint64(1), linkErr.BlockNumber)
}

func TestChainReloadsTip(t *testing.T) {
	dir := t.TempDir()
	db, err := database.New(&database.Config{DataDir: dir})
	require.NoError(t, err)
	c, err := chain.New(db)
	require.NoError(t, err)
	_, err = c.Genesis(context.Background(), testOwner)
	require.NoError(t, err)
	_, err = c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x60}))
	require.NoError(t, err)
	tip := c.Tip()
	require.NoError(t, db.Close())

	db, err = database.New(&database.Config{DataDir: dir})
	require.NoError(t, err)
	defer db.Close()
	c, err = chain.New(db)
	require.NoError(t, err)
	assert.Equal(t, tip, c.Tip())
}

func TestChainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestChain(t, chain.WithPromRegistry(reg))
	_, err := c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x70}))
	require.NoError(t, err)
	_, err = c.SubmitTransaction(context.Background(), issueFunc(cert.Hash{0x70}))
	require.Error(t, err)
	count, err := promtestutil.GatherAndCount(reg, "chain_events_total", "chain_submit_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	families, err := reg.Gather()
	require.NoError(t, err)
	var tipBlock float64
	for _, mf := range families {
		if mf.GetName() == "chain_tip_block_number" {
			tipBlock = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, tipBlock)
}
