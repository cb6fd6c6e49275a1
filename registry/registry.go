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

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/database/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/blinklabs-io/certchain/registry")

// IssueRequest describes a new certificate. A zero Hash is replaced by the
// content hash of the certificate and its issuer.
type IssueRequest struct {
	Hash    cert.Hash
	Content cert.Content
}

type IssueResult struct {
	Hash    cert.Hash
	Record  cert.Record
	Receipt chain.Receipt
}

// Registry performs the mutating certificate operations. Each call is a
// single ledger transaction, so a rejected or failed call leaves no record
// change and no event.
type Registry struct {
	ledger       chain.Ledger
	gate         AccessGate
	logger       *slog.Logger
	promRegistry prometheus.Registerer
	metrics      *registryMetrics
}

// New binds a registry to the ledger. The owner is written to the ledger on
// first use. On later opens owner may be zero to adopt the stored owner, and
// any other value must match it.
func New(
	ctx context.Context,
	ledger chain.Ledger,
	owner cert.Address,
	opts ...RegistryOptionFunc,
) (*Registry, error) {
	r := &Registry{
		ledger: ledger,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	r.logger = r.logger.With("component", "registry")
	stored, err := ledger.Genesis(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("initialize registry owner: %w", err)
	}
	if !owner.IsZero() && stored != owner {
		return nil, fmt.Errorf(
			"%w: configured %s, ledger %s",
			ErrOwnerMismatch,
			owner,
			stored,
		)
	}
	r.gate = NewAccessGate(stored)
	if r.promRegistry != nil {
		r.initMetrics(r.promRegistry)
	}
	return r, nil
}

// Owner returns the only address allowed to issue and revoke
func (r *Registry) Owner() cert.Address {
	return r.gate.Owner()
}

// Gate returns the access gate used for mutating calls
func (r *Registry) Gate() AccessGate {
	return r.gate
}

// Issue creates a certificate record and appends its Issued event
func (r *Registry) Issue(
	ctx context.Context,
	caller cert.Address,
	req IssueRequest,
) (IssueResult, error) {
	ctx, span := tracer.Start(
		ctx,
		"registry.Issue",
		trace.WithAttributes(attribute.String("caller", caller.String())),
	)
	defer span.End()
	result, err := r.issue(ctx, caller, req)
	if err != nil {
		r.recordRejection(opIssue, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return IssueResult{}, err
	}
	span.SetAttributes(attribute.String("cert.hash", result.Hash.String()))
	if r.metrics != nil {
		r.metrics.issued.Inc()
	}
	r.logger.Info(
		"issued certificate",
		"hash", result.Hash.String(),
		"student_id", req.Content.StudentID,
		"block", result.Receipt.Block.Number,
	)
	return result, nil
}

func (r *Registry) issue(
	ctx context.Context,
	caller cert.Address,
	req IssueRequest,
) (IssueResult, error) {
	if !r.gate.IsOwner(caller) {
		return IssueResult{}, ErrUnauthorized
	}
	if err := validateContent(req.Content); err != nil {
		return IssueResult{}, err
	}
	hash := req.Hash
	if hash.IsZero() {
		hash = cert.ComputeHash(req.Content, caller)
	}
	var rec cert.Record
	receipt, err := r.ledger.SubmitTransaction(
		ctx,
		func(tx *chain.Tx) error {
			rec = cert.NewRecord(hash, req.Content, caller, tx.Timestamp())
			if err := tx.PutCertificate(rec); err != nil {
				if errors.Is(err, types.ErrAlreadyExists) {
					return ErrDuplicate
				}
				return err
			}
			tx.Emit(chain.Event{
				CertificateHash: hash,
				Action:          cert.ActionIssued,
				StudentID:       req.Content.StudentID,
				Actor:           caller,
			})
			return nil
		},
	)
	if err != nil {
		return IssueResult{}, r.mapError(opIssue, err)
	}
	return IssueResult{Hash: hash, Record: rec, Receipt: receipt}, nil
}

// Revoke marks an issued certificate revoked and appends its Revoked event.
// Revoked is terminal.
func (r *Registry) Revoke(
	ctx context.Context,
	caller cert.Address,
	hash cert.Hash,
) (chain.Receipt, error) {
	ctx, span := tracer.Start(
		ctx,
		"registry.Revoke",
		trace.WithAttributes(
			attribute.String("caller", caller.String()),
			attribute.String("cert.hash", hash.String()),
		),
	)
	defer span.End()
	receipt, err := r.revoke(ctx, caller, hash)
	if err != nil {
		r.recordRejection(opRevoke, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return chain.Receipt{}, err
	}
	if r.metrics != nil {
		r.metrics.revoked.Inc()
	}
	r.logger.Info(
		"revoked certificate",
		"hash", hash.String(),
		"block", receipt.Block.Number,
	)
	return receipt, nil
}

func (r *Registry) revoke(
	ctx context.Context,
	caller cert.Address,
	hash cert.Hash,
) (chain.Receipt, error) {
	if !r.gate.IsOwner(caller) {
		return chain.Receipt{}, ErrUnauthorized
	}
	receipt, err := r.ledger.SubmitTransaction(
		ctx,
		func(tx *chain.Tx) error {
			if err := tx.MarkRevoked(hash); err != nil {
				switch {
				case errors.Is(err, types.ErrNotFound):
					return ErrNotFound
				case errors.Is(err, types.ErrAlreadyRevoked):
					return ErrAlreadyRevoked
				}
				return err
			}
			tx.Emit(chain.Event{
				CertificateHash: hash,
				Action:          cert.ActionRevoked,
				Actor:           caller,
			})
			return nil
		},
	)
	if err != nil {
		return chain.Receipt{}, r.mapError(opRevoke, err)
	}
	return receipt, nil
}

// mapError passes domain errors through and wraps everything else as a
// transport failure
func (r *Registry) mapError(op string, err error) error {
	switch {
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyRevoked):
		return err
	}
	r.logger.Error(
		"ledger transaction failed",
		"op", op,
		"error", err,
	)
	return &TransportError{Op: op, Err: err}
}

func validateContent(content cert.Content) error {
	var missing []string
	if strings.TrimSpace(content.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(string(content.Classification)) == "" {
		missing = append(missing, "classification")
	}
	if strings.TrimSpace(content.StudentID) == "" {
		missing = append(missing, "student id")
	}
	if strings.TrimSpace(content.StudentName) == "" {
		missing = append(missing, "student name")
	}
	if len(missing) > 0 {
		return fmt.Errorf(
			"%w: missing %s",
			ErrInvalidRequest,
			strings.Join(missing, ", "),
		)
	}
	return nil
}

func rejectionReason(err error) string {
	var transportErr *TransportError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyRevoked):
		return "already_revoked"
	case errors.As(err, &transportErr):
		return "transport"
	default:
		return "other"
	}
}
