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

package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/blinklabs-io/certchain/cache"
	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("github.com/blinklabs-io/certchain/reconstruct")

var ErrNotFound = errors.New("certificate not found")

// Reconstructor projects certificate state from the event log and point in
// time record reads. It never writes.
type Reconstructor struct {
	ledger       chain.Ledger
	cache        cache.Cache
	group        singleflight.Group
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	cacheLookups *prometheus.CounterVec
	pageSize     int
}

func New(ledger chain.Ledger, opts ...ReconstructorOptionFunc) *Reconstructor {
	r := &Reconstructor{
		ledger:   ledger,
		pageSize: chain.DefaultIteratorPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "reconstruct")
	if r.cache == nil {
		r.cache = cache.Noop{}
	}
	if r.promRegistry != nil {
		r.cacheLookups = promauto.With(r.promRegistry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconstruct_cache_lookups_total",
				Help: "verification cache lookups, by result",
			},
			[]string{"result"},
		)
	}
	return r
}

func (r *Reconstructor) countLookup(result string) {
	if r.cacheLookups != nil {
		r.cacheLookups.WithLabelValues(result).Inc()
	}
}

// VerifyByHash returns the current state of a certificate, or ErrNotFound if
// it was never issued
func (r *Reconstructor) VerifyByHash(
	ctx context.Context,
	hash cert.Hash,
) (VerificationResult, error) {
	ctx, span := tracer.Start(
		ctx,
		"reconstruct.VerifyByHash",
		trace.WithAttributes(attribute.String("cert.hash", hash.String())),
	)
	defer span.End()
	// The tip hash commits to the whole ledger back to genesis. Every block
	// changes the key, and ledgers sharing a cache never share keys.
	key := fmt.Sprintf("verify:%s:%s", hash, r.ledger.Tip().BlockHash)
	data, err := r.cache.Get(ctx, key)
	if err == nil {
		res, err := decodeResult(data)
		if err == nil {
			r.countLookup("hit")
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return res, nil
		}
		r.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
	} else if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("cache lookup failed", "key", key, "error", err)
	}
	r.countLookup("miss")
	v, err, _ := r.group.Do(key, func() (any, error) {
		res, err := r.verify(ctx, hash)
		if err != nil {
			return nil, err
		}
		data, err := encodeResult(res)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, data); err != nil {
			r.logger.Warn("cache store failed", "key", key, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return VerificationResult{}, err
	}
	return v.(VerificationResult), nil
}

func (r *Reconstructor) verify(
	ctx context.Context,
	hash cert.Hash,
) (VerificationResult, error) {
	var rec cert.Record
	err := r.ledger.ReadState(ctx, func(s chain.StateReader) error {
		var err error
		rec, err = s.Certificate(hash)
		return err
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return VerificationResult{}, ErrNotFound
		}
		return VerificationResult{}, fmt.Errorf("read certificate: %w", err)
	}
	if !rec.Exists() {
		return VerificationResult{}, ErrNotFound
	}
	res := VerificationResult{
		Hash:           rec.Hash,
		Name:           rec.Name,
		Classification: rec.Classification,
		StudentID:      rec.StudentID,
		StudentName:    rec.StudentName,
		DateOfBirth:    rec.BirthDate(),
		Issuer:         rec.Issuer,
		IssuedAt:       rec.IssuedTime(),
		Revoked:        rec.Revoked,
	}
	if rec.Revoked {
		revokedAt, err := r.revokedAt(ctx, hash)
		if err != nil {
			return VerificationResult{}, err
		}
		res.RevokedAt = revokedAt
	}
	return res, nil
}

// revokedAt returns the block timestamp of the lowest positioned Revoked
// event for hash
func (r *Reconstructor) revokedAt(
	ctx context.Context,
	hash cert.Hash,
) (*time.Time, error) {
	events, err := r.ledger.QueryEvents(ctx, chain.EventQuery{
		CertificateHash: &hash,
		Actions:         []cert.Action{cert.ActionRevoked},
		Limit:           1,
	})
	if err != nil {
		return nil, fmt.Errorf("query revocation: %w", err)
	}
	if len(events) == 0 {
		r.logger.Warn(
			"revoked certificate has no revocation event",
			"hash", hash.String(),
		)
		return nil, nil
	}
	ts, err := r.ledger.BlockTimestamp(ctx, events[0].BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("revocation block timestamp: %w", err)
	}
	return &ts, nil
}

// HistoryAll returns every event in log order
func (r *Reconstructor) HistoryAll(ctx context.Context) ([]HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "reconstruct.HistoryAll")
	defer span.End()
	it := chain.NewEventIterator(r.ledger, chain.EventQuery{}, r.pageSize)
	ret := []HistoryEntry{}
	for {
		ev, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, chain.ErrIteratorEnd) {
				break
			}
			return nil, err
		}
		ret = append(ret, entryFromEvent(ev))
	}
	span.SetAttributes(attribute.Int("events", len(ret)))
	return ret, nil
}

// History returns one page of events matching the filter
func (r *Reconstructor) History(
	ctx context.Context,
	filter HistoryFilter,
) ([]HistoryEntry, error) {
	ctx, span := tracer.Start(ctx, "reconstruct.History")
	defer span.End()
	events, err := r.ledger.QueryEvents(ctx, chain.EventQuery{
		Actions:      filter.Actions,
		FromPosition: filter.FromPosition,
		ToPosition:   filter.ToPosition,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
		Descending:   filter.Descending,
	})
	if err != nil {
		return nil, err
	}
	ret := make([]HistoryEntry, len(events))
	for i, ev := range events {
		ret[i] = entryFromEvent(ev)
	}
	return ret, nil
}

// HistoryCount returns how many events match the filter, ignoring its
// paging fields
func (r *Reconstructor) HistoryCount(
	ctx context.Context,
	filter HistoryFilter,
) (int64, error) {
	return r.ledger.CountEvents(ctx, chain.EventQuery{
		Actions:      filter.Actions,
		FromPosition: filter.FromPosition,
		ToPosition:   filter.ToPosition,
	})
}

// FindByStudentID returns the certificates whose issuance carried studentID,
// in issuance order. No match is an empty result, not an error.
func (r *Reconstructor) FindByStudentID(
	ctx context.Context,
	studentID string,
) ([]StudentCertificate, error) {
	ctx, span := tracer.Start(
		ctx,
		"reconstruct.FindByStudentID",
		trace.WithAttributes(attribute.String("student_id", studentID)),
	)
	defer span.End()
	ret := []StudentCertificate{}
	if strings.TrimSpace(studentID) == "" {
		return ret, nil
	}
	it := chain.NewEventIterator(
		r.ledger,
		chain.EventQuery{
			StudentID: studentID,
			Actions:   []cert.Action{cert.ActionIssued},
		},
		r.pageSize,
	)
	var hashes []cert.Hash
	seen := make(map[cert.Hash]struct{})
	for {
		ev, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, chain.ErrIteratorEnd) {
				break
			}
			return nil, err
		}
		if _, ok := seen[ev.CertificateHash]; ok {
			continue
		}
		seen[ev.CertificateHash] = struct{}{}
		hashes = append(hashes, ev.CertificateHash)
	}
	for _, hash := range hashes {
		lookup, err := r.lookup(ctx, hash)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		ret = append(ret, StudentCertificate{
			Hash:         hash,
			LatestAction: lookup.LatestAction,
			IssuedAt:     lookup.IssuedAt,
			RevokedAt:    lookup.RevokedAt,
		})
	}
	return ret, nil
}

// LookupByHash derives the state of a certificate from its events without
// reading the record
func (r *Reconstructor) LookupByHash(
	ctx context.Context,
	hash cert.Hash,
) (EventLookup, error) {
	ctx, span := tracer.Start(
		ctx,
		"reconstruct.LookupByHash",
		trace.WithAttributes(attribute.String("cert.hash", hash.String())),
	)
	defer span.End()
	return r.lookup(ctx, hash)
}

// lookup replays the events of one hash. Events before the first Issued
// event are ignored.
func (r *Reconstructor) lookup(
	ctx context.Context,
	hash cert.Hash,
) (EventLookup, error) {
	it := chain.NewEventIterator(
		r.ledger,
		chain.EventQuery{CertificateHash: &hash},
		r.pageSize,
	)
	ret := EventLookup{Hash: hash}
	issued := false
	for {
		ev, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, chain.ErrIteratorEnd) {
				break
			}
			return EventLookup{}, err
		}
		if !issued {
			if ev.Action != cert.ActionIssued {
				continue
			}
			issued = true
			ret.IssuedAt = ev.Timestamp
			ret.StudentID = ev.StudentID
		}
		if ev.Action == cert.ActionRevoked && ret.RevokedAt == nil {
			revokedAt := ev.Timestamp
			ret.RevokedAt = &revokedAt
		}
		ret.LatestAction = ev.Action
		ret.Events = append(ret.Events, entryFromEvent(ev))
	}
	if !issued {
		return EventLookup{}, ErrNotFound
	}
	return ret, nil
}
