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

package database

import (
	"errors"
	"fmt"

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database/types"
	"github.com/fxamacker/cbor/v2"
)

// GetCertificate returns the stored record for a hash. A missing key and a
// record without an issuance time are both reported as types.ErrNotFound.
func (d *Database) GetCertificate(
	hash cert.Hash,
	txn *Txn,
) (cert.Record, error) {
	var ret cert.Record
	err := d.view(txn, func(txn *Txn) error {
		data, err := d.blob.Get(txn.Blob(), types.CertificateBlobKey(hash.Bytes()))
		if err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return types.ErrNotFound
			}
			return err
		}
		if err := cbor.Unmarshal(data, &ret); err != nil {
			return fmt.Errorf("decode certificate %s: %w", hash, err)
		}
		if !ret.Exists() {
			return types.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return cert.Record{}, err
	}
	return ret, nil
}

// PutCertificate stores a new record. It fails with types.ErrAlreadyExists
// if the hash already holds a record.
func (d *Database) PutCertificate(rec cert.Record, txn *Txn) error {
	if !rec.Exists() {
		return errors.New("certificate record has no issuance time")
	}
	return d.update(txn, func(txn *Txn) error {
		_, err := d.GetCertificate(rec.Hash, txn)
		if err == nil {
			return fmt.Errorf("certificate %s: %w", rec.Hash, types.ErrAlreadyExists)
		}
		if !errors.Is(err, types.ErrNotFound) {
			return err
		}
		return d.setCertificate(rec, txn)
	})
}

// MarkCertificateRevoked flips the revoked flag of an existing record
func (d *Database) MarkCertificateRevoked(hash cert.Hash, txn *Txn) error {
	return d.update(txn, func(txn *Txn) error {
		rec, err := d.GetCertificate(hash, txn)
		if err != nil {
			return err
		}
		if rec.Revoked {
			return fmt.Errorf("certificate %s: %w", hash, types.ErrAlreadyRevoked)
		}
		rec.Revoked = true
		return d.setCertificate(rec, txn)
	})
}

func (d *Database) setCertificate(rec cert.Record, txn *Txn) error {
	data, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode certificate %s: %w", rec.Hash, err)
	}
	return d.blob.Set(txn.Blob(), types.CertificateBlobKey(rec.Hash.Bytes()), data)
}
