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

package cert

import (
	"fmt"
	"strings"
	"time"
)

type Classification string

const (
	ClassificationExcellent Classification = "excellent"
	ClassificationVeryGood  Classification = "veryGood"
	ClassificationGood      Classification = "good"

	ClassificationUnknownLabel = "unknown"
)

var classificationLabels = map[Classification]string{
	ClassificationExcellent: "Excellent",
	ClassificationVeryGood:  "Very good",
	ClassificationGood:      "Good",
}

// Known reports whether the classification is one of the enumerated values
func (c Classification) Known() bool {
	_, ok := classificationLabels[c]
	return ok
}

// Label returns a display label. Values outside the enumeration are stored
// as-is by the registry and render as "unknown".
func (c Classification) Label() string {
	if label, ok := classificationLabels[c]; ok {
		return label
	}
	return ClassificationUnknownLabel
}

// Action is the kind of a state transition. The numeric values are part of
// the persisted event format.
type Action uint8

const (
	ActionIssued  Action = 0
	ActionRevoked Action = 1
)

func (a Action) String() string {
	switch a {
	case ActionIssued:
		return "issued"
	case ActionRevoked:
		return "revoked"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "issued":
		return ActionIssued, nil
	case "revoked":
		return ActionRevoked, nil
	default:
		return 0, fmt.Errorf("unknown certificate action: %q", s)
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	tmp, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = tmp
	return nil
}

// Content holds the fields supplied by the issuer. They never change after
// issuance.
type Content struct {
	Name           string
	Classification Classification
	StudentID      string
	StudentName    string
	// DateOfBirth is unix seconds at midnight UTC of the birth date
	DateOfBirth int64
}

// Record is the stored state of a single certificate
type Record struct {
	_              struct{} `cbor:",toarray"`
	Hash           Hash
	Name           string
	Classification Classification
	Issuer         Address
	IssuedAt       int64
	Revoked        bool
	StudentID      string
	StudentName    string
	DateOfBirth    int64
}

func NewRecord(
	hash Hash,
	content Content,
	issuer Address,
	issuedAt time.Time,
) Record {
	return Record{
		Hash:           hash,
		Name:           content.Name,
		Classification: content.Classification,
		Issuer:         issuer,
		IssuedAt:       issuedAt.Unix(),
		StudentID:      content.StudentID,
		StudentName:    content.StudentName,
		DateOfBirth:    content.DateOfBirth,
	}
}

// Exists reports whether the record was ever written. A record with a zero
// issuance time is the default value of an unwritten key.
func (r Record) Exists() bool {
	return r.IssuedAt != 0
}

func (r Record) Content() Content {
	return Content{
		Name:           r.Name,
		Classification: r.Classification,
		StudentID:      r.StudentID,
		StudentName:    r.StudentName,
		DateOfBirth:    r.DateOfBirth,
	}
}

func (r Record) IssuedTime() time.Time {
	return time.Unix(r.IssuedAt, 0).UTC()
}

func (r Record) BirthDate() time.Time {
	return time.Unix(r.DateOfBirth, 0).UTC()
}

// DateToUnix normalizes a calendar date to unix seconds at midnight UTC
func DateToUnix(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (int64, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateToUnix(t), nil
}
