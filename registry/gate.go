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

import "github.com/blinklabs-io/certchain/cert"

// AccessGate compares callers against the owner fixed at registry creation
type AccessGate struct {
	owner cert.Address
}

func NewAccessGate(owner cert.Address) AccessGate {
	return AccessGate{owner: owner}
}

// IsOwner reports whether caller may mutate the registry. The zero address
// is the anonymous caller and never matches.
func (g AccessGate) IsOwner(caller cert.Address) bool {
	if caller.IsZero() {
		return false
	}
	return caller == g.owner
}

func (g AccessGate) Owner() cert.Address {
	return g.owner
}
