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

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type HealthResponse struct {
	IsHealthy bool `json:"is_healthy"`
}

type OwnerResponse struct {
	Owner string `json:"owner"`
}

type TipResponse struct {
	BlockNumber  uint64 `json:"block_number"`
	BlockHash    string `json:"block_hash"`
	Time         int64  `json:"time"`
	LastPosition uint64 `json:"last_position"`
}

type CertificateResponse struct {
	Hash                string `json:"hash"`
	Name                string `json:"name"`
	Classification      string `json:"classification"`
	ClassificationLabel string `json:"classification_label"`
	StudentID           string `json:"student_id"`
	StudentName         string `json:"student_name"`
	DateOfBirth         string `json:"date_of_birth"`
	Issuer              string `json:"issuer"`
	IssuedAt            int64  `json:"issued_at"`
	Revoked             bool   `json:"revoked"`
	RevokedAt           *int64 `json:"revoked_at"`
}

type EventResponse struct {
	Position    uint64 `json:"position"`
	BlockNumber uint64 `json:"block_number"`
	Hash        string `json:"certificate_hash"`
	Action      string `json:"action"`
	StudentID   string `json:"student_id,omitempty"`
	Actor       string `json:"actor"`
	Time        int64  `json:"time"`
}

type LookupResponse struct {
	Hash         string          `json:"hash"`
	StudentID    string          `json:"student_id"`
	LatestAction string          `json:"latest_action"`
	IssuedAt     int64           `json:"issued_at"`
	RevokedAt    *int64          `json:"revoked_at"`
	Events       []EventResponse `json:"events"`
}

type StudentCertificateResponse struct {
	Hash         string `json:"hash"`
	LatestAction string `json:"latest_action"`
	IssuedAt     int64  `json:"issued_at"`
	RevokedAt    *int64 `json:"revoked_at"`
}

// IssueRequest is the body of POST /api/v1/certificates. Hash is optional.
type IssueRequest struct {
	Hash           string `json:"hash,omitempty"`
	Name           string `json:"name"`
	Classification string `json:"classification"`
	StudentID      string `json:"student_id"`
	StudentName    string `json:"student_name"`
	// DateOfBirth is YYYY-MM-DD
	DateOfBirth string `json:"date_of_birth"`
}

type ReceiptResponse struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"block_number"`
	BlockHash   string `json:"block_hash"`
	Position    uint64 `json:"position"`
	Time        int64  `json:"time"`
}
