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

	"github.com/blinklabs-io/certchain/cert"
	"github.com/blinklabs-io/certchain/database/types"
)

// GetOwner returns the registry owner address, or types.ErrNotFound if the
// registry was never initialized
func (d *Database) GetOwner(txn *Txn) (cert.Address, error) {
	var ret cert.Address
	err := d.view(txn, func(txn *Txn) error {
		data, err := d.blob.Get(txn.Blob(), []byte(types.OwnerBlobKey))
		if err != nil {
			if errors.Is(err, types.ErrBlobKeyNotFound) {
				return types.ErrNotFound
			}
			return err
		}
		if len(data) != cert.AddressSize {
			return errors.New("malformed registry owner")
		}
		copy(ret[:], data)
		return nil
	})
	return ret, err
}

// SetOwner records the registry owner. The owner is written once when the
// registry is created.
func (d *Database) SetOwner(owner cert.Address, txn *Txn) error {
	return d.update(txn, func(txn *Txn) error {
		if _, err := d.GetOwner(txn); err == nil {
			return types.ErrAlreadyExists
		} else if !errors.Is(err, types.ErrNotFound) {
			return err
		}
		return d.blob.Set(txn.Blob(), []byte(types.OwnerBlobKey), owner.Bytes())
	})
}
