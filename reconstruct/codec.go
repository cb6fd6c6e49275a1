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
	"time"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/fxamacker/cbor/v2"
)

// cachedResult is the encoded form of a VerificationResult. Times are unix
// seconds and RevokedAt is 0 when unset.
type cachedResult struct {
	_              struct{} `cbor:",toarray"`
	Hash           cert.Hash
	Name           string
	Classification cert.Classification
	StudentID      string
	StudentName    string
	DateOfBirth    int64
	Issuer         cert.Address
	IssuedAt       int64
	Revoked        bool
	RevokedAt      int64
}

func encodeResult(res VerificationResult) ([]byte, error) {
	tmp := cachedResult{
		Hash:           res.Hash,
		Name:           res.Name,
		Classification: res.Classification,
		StudentID:      res.StudentID,
		StudentName:    res.StudentName,
		DateOfBirth:    res.DateOfBirth.Unix(),
		Issuer:         res.Issuer,
		IssuedAt:       res.IssuedAt.Unix(),
		Revoked:        res.Revoked,
	}
	if res.RevokedAt != nil {
		tmp.RevokedAt = res.RevokedAt.Unix()
	}
	return cbor.Marshal(tmp)
}

func decodeResult(data []byte) (VerificationResult, error) {
	var tmp cachedResult
	if err := cbor.Unmarshal(data, &tmp); err != nil {
		return VerificationResult{}, err
	}
	ret := VerificationResult{
		Hash:           tmp.Hash,
		Name:           tmp.Name,
		Classification: tmp.Classification,
		StudentID:      tmp.StudentID,
		StudentName:    tmp.StudentName,
		DateOfBirth:    time.Unix(tmp.DateOfBirth, 0).UTC(),
		Issuer:         tmp.Issuer,
		IssuedAt:       time.Unix(tmp.IssuedAt, 0).UTC(),
		Revoked:        tmp.Revoked,
	}
	if tmp.RevokedAt != 0 {
		revokedAt := time.Unix(tmp.RevokedAt, 0).UTC()
		ret.RevokedAt = &revokedAt
	}
	return ret, nil
}
