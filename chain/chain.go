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

package chain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database"
	"github.com/blinklabs-io/certchain/database/models"
	"github.com/blinklabs-io/certchain/database/types"
	"github.com/blinklabs-io/certchain/event"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/blinklabs-io/certchain/chain")

// Chain is the local single-writer ledger. Writers are serialized by one
// lock held for the whole read-decide-write-emit sequence, which gives all
// blocks and events a single global order.
type Chain struct {
	db           *database.Database
	eventBus     *event.EventBus
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      *chainMetrics
	now          func() time.Time
	// writeSem is a one-slot semaphore so waiting writers can observe
	// context cancellation
	writeSem chan struct{}
	// halted holds the partial commit error that stopped writes. Guarded
	// by writeSem.
	halted   error
	tipMutex sync.RWMutex
	tip      Tip
}

var _ Ledger = (*Chain)(nil)

// New loads the chain tip from the database
func New(db *database.Database, opts ...ChainOptionFunc) (*Chain, error) {
	if db == nil {
		return nil, errors.New("no database provided")
	}
	c := &Chain{
		db:       db,
		now:      time.Now,
		writeSem: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	c.logger = c.logger.With("component", "chain")
	if c.promRegistry != nil {
		c.initMetrics(c.promRegistry)
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load chain: %w", err)
	}
	return c, nil
}

func (c *Chain) load() error {
	txn := c.db.Transaction(false)
	defer txn.Release()
	tipBlock, err := c.db.GetTipBlock(txn)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil
		}
		return err
	}
	lastPos, err := c.db.LastTransitionPosition(txn)
	if err != nil {
		return err
	}
	c.setTip(blockFromModel(tipBlock), lastPos)
	return nil
}

func (c *Chain) setTip(block Block, lastPosition uint64) {
	c.tipMutex.Lock()
	c.tip = Tip{
		BlockNumber:  block.Number,
		BlockHash:    block.Hash,
		Timestamp:    block.Timestamp,
		LastPosition: lastPosition,
	}
	c.tipMutex.Unlock()
	if c.metrics != nil {
		c.metrics.tipBlock.Set(float64(block.Number))
		c.metrics.tipPosition.Set(float64(lastPosition))
	}
}

// Tip returns the newest committed block
func (c *Chain) Tip() Tip {
	c.tipMutex.RLock()
	defer c.tipMutex.RUnlock()
	return c.tip
}

func (c *Chain) lock(ctx context.Context) error {
	select {
	case c.writeSem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Chain) unlock() {
	<-c.writeSem
}

// Genesis writes the owner scalar and block 0 on first use. On later calls
// it returns the stored owner without modifying anything.
func (c *Chain) Genesis(
	ctx context.Context,
	owner cert.Address,
) (cert.Address, error) {
	if err := c.lock(ctx); err != nil {
		return cert.Address{}, err
	}
	defer c.unlock()
	stored, err := c.db.GetOwner(nil)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return cert.Address{}, err
	}
	if owner.IsZero() {
		return cert.Address{}, ErrOwnerRequired
	}
	ts := c.now().Unix()
	genesis := models.Block{
		Number:    0,
		Hash:      genesisHash(owner, ts).Bytes(),
		PrevHash:  cert.Hash{}.Bytes(),
		Timestamp: ts,
	}
	err = c.db.Transaction(true).Do(func(txn *database.Txn) error {
		if err := c.db.SetOwner(owner, txn); err != nil {
			return err
		}
		return c.db.AddBlock(genesis, txn)
	})
	if err != nil {
		return cert.Address{}, err
	}
	c.setTip(blockFromModel(genesis), 0)
	c.logger.Info(
		"wrote genesis block",
		"owner", owner.String(),
		"hash", c.Tip().BlockHash.String(),
	)
	return owner, nil
}

// SubmitTransaction runs fn against the current state and commits its
// writes together with the events it emitted as a new block. If fn or the
// commit fails, no block is produced. A commit that lands in the blob store
// but not the metadata store halts the chain: later calls fail with
// ErrLedgerHalted until the database is checked and reopened.
func (c *Chain) SubmitTransaction(
	ctx context.Context,
	fn TxFunc,
) (Receipt, error) {
	ctx, span := tracer.Start(ctx, "chain.SubmitTransaction")
	defer span.End()
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	if err := c.lock(ctx); err != nil {
		return Receipt{}, err
	}
	defer c.unlock()
	if c.halted != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrLedgerHalted, c.halted)
	}
	start := time.Now()
	receipt, err := c.submit(fn)
	if c.metrics != nil {
		c.metrics.submitDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if c.metrics != nil {
			c.metrics.submitFailures.Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, database.ErrPartialCommit) {
			c.halted = err
			c.logger.Error("halting writes after partial commit", "error", err)
		}
		return Receipt{}, err
	}
	span.SetAttributes(
		attribute.Int64("block.number", int64(receipt.Block.Number)), // #nosec G115
		attribute.Int("block.events", len(receipt.Events)),
	)
	c.setTip(receipt.Block, receipt.Events[len(receipt.Events)-1].Position)
	if c.metrics != nil {
		c.metrics.eventsTotal.Add(float64(len(receipt.Events)))
	}
	c.logger.Debug(
		"committed block",
		"number", receipt.Block.Number,
		"hash", receipt.Block.Hash.String(),
		"events", len(receipt.Events),
	)
	// Published under the writer lock so subscribers see blocks in order
	if c.eventBus != nil {
		c.eventBus.Publish(
			BlockEventType,
			event.NewEvent(
				BlockEventType,
				BlockEvent(receipt),
			),
		)
	}
	return receipt, nil
}

func (c *Chain) submit(fn TxFunc) (Receipt, error) {
	var receipt Receipt
	err := c.db.Transaction(true).Do(func(txn *database.Txn) error {
		prev, err := c.db.GetTipBlock(txn)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return ErrNoGenesis
			}
			return err
		}
		ts := c.now().Unix()
		// Block timestamps never go backwards
		if ts < prev.Timestamp {
			ts = prev.Timestamp
		}
		tx := &Tx{
			db:        c.db,
			txn:       txn,
			timestamp: time.Unix(ts, 0).UTC(),
		}
		if err := fn(tx); err != nil {
			return err
		}
		if len(tx.pending) == 0 {
			return ErrEmptyTransaction
		}
		number := prev.Number + 1
		transitions := make([]models.Transition, len(tx.pending))
		for i, ev := range tx.pending {
			ev.BlockNumber = number
			ev.LogIndex = uint32(i) // #nosec G115
			ev.Timestamp = tx.timestamp
			transitions[i] = eventToModel(ev)
		}
		if err := c.db.AppendTransitions(transitions, txn); err != nil {
			return fmt.Errorf("append events: %w", err)
		}
		var prevHash cert.Hash
		copy(prevHash[:], prev.Hash)
		block := models.Block{
			Number:     number,
			Hash:       blockHash(prevHash, number, ts, transitions).Bytes(),
			PrevHash:   prevHash.Bytes(),
			Timestamp:  ts,
			EventCount: uint32(len(transitions)), // #nosec G115
		}
		if err := c.db.AddBlock(block, txn); err != nil {
			return fmt.Errorf("add block: %w", err)
		}
		receipt.Block = blockFromModel(block)
		receipt.Events = make([]Event, len(transitions))
		for i, t := range transitions {
			receipt.Events[i] = eventFromModel(t)
		}
		return nil
	})
	return receipt, err
}

// ReadState runs fn against a consistent read-only snapshot
func (c *Chain) ReadState(
	ctx context.Context,
	fn func(StateReader) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	txn := c.db.Transaction(false)
	defer txn.Release()
	return fn(&stateReader{db: c.db, txn: txn})
}

// QueryEvents returns the events matching the query in position order
func (c *Chain) QueryEvents(
	ctx context.Context,
	query EventQuery,
) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	transitions, err := c.db.ScanTransitions(query.filter(), nil)
	if err != nil {
		return nil, err
	}
	ret := make([]Event, len(transitions))
	for i, t := range transitions {
		ret[i] = eventFromModel(t)
	}
	return ret, nil
}

// CountEvents returns how many events match the query
func (c *Chain) CountEvents(
	ctx context.Context,
	query EventQuery,
) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.db.CountTransitions(query.filter(), nil)
}

// BlockTimestamp returns the timestamp of a committed block
func (c *Chain) BlockTimestamp(
	ctx context.Context,
	blockNumber uint64,
) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	block, err := c.db.GetBlock(blockNumber, nil)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: %d", ErrBlockNotFound, blockNumber)
		}
		return time.Time{}, err
	}
	return time.Unix(block.Timestamp, 0).UTC(), nil
}

// Blocks returns up to limit committed blocks starting at fromNumber
func (c *Chain) Blocks(
	ctx context.Context,
	fromNumber uint64,
	limit int,
) ([]Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blocks, err := c.db.GetBlocks(fromNumber, limit, nil)
	if err != nil {
		return nil, err
	}
	ret := make([]Block, len(blocks))
	for i, b := range blocks {
		ret[i] = blockFromModel(b)
	}
	return ret, nil
}
