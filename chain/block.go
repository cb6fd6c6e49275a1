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
	"encoding/binary"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database/models"
)

var genesisDomain = []byte("certchain/genesis")

// genesisHash anchors the block chain to the registry owner
func genesisHash(owner cert.Address, timestamp int64) cert.Hash {
	return cert.Keccak256(
		genesisDomain,
		owner.Bytes(),
		binary.BigEndian.AppendUint64(nil, uint64(timestamp)), // #nosec G115
	)
}

// eventDigest commits to every persisted field of a transition
func eventDigest(t models.Transition) cert.Hash {
	buf := make([]byte, 0, 128)
	buf = binary.BigEndian.AppendUint64(buf, t.Position)
	buf = binary.BigEndian.AppendUint64(buf, t.BlockNumber)
	buf = binary.BigEndian.AppendUint32(buf, t.LogIndex)
	buf = append(buf, t.CertificateHash...)
	buf = append(buf, t.Action)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(t.StudentID))) // #nosec G115
	buf = append(buf, t.StudentID...)
	buf = append(buf, t.Actor...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(t.Timestamp)) // #nosec G115
	return cert.Keccak256(buf)
}

// blockHash links a block to its predecessor and commits to its events
func blockHash(
	prevHash cert.Hash,
	number uint64,
	timestamp int64,
	events []models.Transition,
) cert.Hash {
	parts := make([][]byte, 0, len(events)+3)
	parts = append(
		parts,
		prevHash.Bytes(),
		binary.BigEndian.AppendUint64(nil, number),
		binary.BigEndian.AppendUint64(nil, uint64(timestamp)), // #nosec G115
	)
	for _, ev := range events {
		digest := eventDigest(ev)
		parts = append(parts, digest.Bytes())
	}
	return cert.Keccak256(parts...)
}
