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
	"errors"
	"fmt"
)

var (
	ErrUnauthorized   = errors.New("caller is not the registry owner")
	ErrDuplicate      = errors.New("certificate already exists")
	ErrNotFound       = errors.New("certificate not found")
	ErrAlreadyRevoked = errors.New("certificate already revoked")
	ErrInvalidRequest = errors.New("invalid request")
	ErrOwnerMismatch  = errors.New("configured owner does not match ledger owner")
)

// TransportError wraps a failure of the underlying ledger. State-changing
// calls are never retried automatically.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
