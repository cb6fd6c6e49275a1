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

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/internal/version"
	"github.com/blinklabs-io/certchain/reconstruct"
	"github.com/blinklabs-io/certchain/registry"
	"github.com/go-chi/chi/v5"
)

const maxRequestBodySize = 64 * 1024

func writeJSON(
	w http.ResponseWriter,
	status int,
	v any,
) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson
	json.NewEncoder(w).Encode(v)
}

func writeError(
	w http.ResponseWriter,
	status int,
	errStr string,
	message string,
) {
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      errStr,
		Message:    message,
	})
}

// writeDomainError maps registry and reconstruction errors to HTTP statuses
func (a *API) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, registry.ErrDuplicate),
		errors.Is(err, registry.ErrAlreadyRevoked):
		writeError(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, reconstruct.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, registry.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		a.logger.Error(
			"request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "request failed")
	}
}

func (a *API) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RootResponse{
		Name:    "certchain",
		Version: version.GetVersionString(),
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{IsHealthy: true})
}

func (a *API) handleOwner(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OwnerResponse{Owner: a.registry.Owner().String()})
}

func (a *API) handleTip(w http.ResponseWriter, _ *http.Request) {
	tip := a.ledger.Tip()
	writeJSON(w, http.StatusOK, TipResponse{
		BlockNumber:  tip.BlockNumber,
		BlockHash:    tip.BlockHash.String(),
		Time:         tip.Timestamp.Unix(),
		LastPosition: tip.LastPosition,
	})
}

func parseHashParam(w http.ResponseWriter, r *http.Request) (cert.Hash, bool) {
	hash, err := cert.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return cert.Hash{}, false
	}
	return hash, true
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashParam(w, r)
	if !ok {
		return
	}
	res, err := a.recon.VerifyByHash(r.Context(), hash)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CertificateResponse{
		Hash:                res.Hash.String(),
		Name:                res.Name,
		Classification:      string(res.Classification),
		ClassificationLabel: res.Classification.Label(),
		StudentID:           res.StudentID,
		StudentName:         res.StudentName,
		DateOfBirth:         res.DateOfBirth.Format(time.DateOnly),
		Issuer:              res.Issuer.String(),
		IssuedAt:            res.IssuedAt.Unix(),
		Revoked:             res.Revoked,
		RevokedAt:           unixPtr(res.RevokedAt),
	})
}

func (a *API) handleLookup(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashParam(w, r)
	if !ok {
		return
	}
	lookup, err := a.recon.LookupByHash(r.Context(), hash)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	events := make([]EventResponse, len(lookup.Events))
	for i, entry := range lookup.Events {
		events[i] = eventResponse(entry)
	}
	writeJSON(w, http.StatusOK, LookupResponse{
		Hash:         lookup.Hash.String(),
		StudentID:    lookup.StudentID,
		LatestAction: lookup.LatestAction.String(),
		IssuedAt:     lookup.IssuedAt.Unix(),
		RevokedAt:    unixPtr(lookup.RevokedAt),
		Events:       events,
	})
}

func (a *API) handleStudentCertificates(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	found, err := a.recon.FindByStudentID(r.Context(), studentID)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	ret := make([]StudentCertificateResponse, len(found))
	for i, f := range found {
		ret[i] = StudentCertificateResponse{
			Hash:         f.Hash.String(),
			LatestAction: f.LatestAction.String(),
			IssuedAt:     f.IssuedAt.Unix(),
			RevokedAt:    unixPtr(f.RevokedAt),
		}
	}
	writeJSON(w, http.StatusOK, ret)
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	params, err := ParsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	filter := reconstruct.HistoryFilter{
		Descending: params.Order == PaginationOrderDesc,
		Limit:      params.Count,
		Offset:     params.Offset(),
	}
	if actionParam := r.URL.Query().Get("action"); actionParam != "" {
		for _, s := range strings.Split(actionParam, ",") {
			action, err := cert.ParseAction(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
				return
			}
			filter.Actions = append(filter.Actions, action)
		}
	}
	total, err := a.recon.HistoryCount(r.Context(), filter)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	entries, err := a.recon.History(r.Context(), filter)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	ret := make([]EventResponse, len(entries))
	for i, entry := range entries {
		ret[i] = eventResponse(entry)
	}
	SetPaginationHeaders(w, int(total), params)
	writeJSON(w, http.StatusOK, ret)
}

func (a *API) handleIssue(w http.ResponseWriter, r *http.Request) {
	var body IssueRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	req := registry.IssueRequest{
		Content: cert.Content{
			Name:           body.Name,
			Classification: cert.Classification(body.Classification),
			StudentID:      body.StudentID,
			StudentName:    body.StudentName,
		},
	}
	if body.Hash != "" {
		hash, err := cert.ParseHash(body.Hash)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		req.Hash = hash
	}
	dob, err := cert.ParseDate(body.DateOfBirth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	req.Content.DateOfBirth = dob
	result, err := a.registry.Issue(r.Context(), CallerFromContext(r.Context()), req)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receiptResponse(result.Hash, result.Receipt))
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashParam(w, r)
	if !ok {
		return
	}
	receipt, err := a.registry.Revoke(r.Context(), CallerFromContext(r.Context()), hash)
	if err != nil {
		a.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receiptResponse(hash, receipt))
}

func eventResponse(entry reconstruct.HistoryEntry) EventResponse {
	return EventResponse{
		Position:    entry.Position,
		BlockNumber: entry.BlockNumber,
		Hash:        entry.Hash.String(),
		Action:      entry.Action.String(),
		StudentID:   entry.StudentID,
		Actor:       entry.Actor.String(),
		Time:        entry.Timestamp.Unix(),
	}
}

func receiptResponse(hash cert.Hash, receipt chain.Receipt) ReceiptResponse {
	ret := ReceiptResponse{
		Hash:        hash.String(),
		BlockNumber: receipt.Block.Number,
		BlockHash:   receipt.Block.Hash.String(),
		Time:        receipt.Block.Timestamp.Unix(),
	}
	if len(receipt.Events) > 0 {
		ret.Position = receipt.Events[0].Position
	}
	return ret
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ret := t.Unix()
	return &ret
}
