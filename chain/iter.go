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
	"context"
	"errors"
)

const DefaultIteratorPageSize = 500

// EventIterator walks the events matching a query in pages. The upper bound
// is pinned to the tip when the iterator is created, so events committed
// during iteration are not returned.
type EventIterator struct {
	ledger   Ledger
	query    EventQuery
	pageSize int
	page     []Event
	idx      int
	position uint64
	done     bool
}

func NewEventIterator(
	ledger Ledger,
	query EventQuery,
	pageSize int,
) *EventIterator {
	if pageSize <= 0 {
		pageSize = DefaultIteratorPageSize
	}
	tipPos := ledger.Tip().LastPosition
	if query.ToPosition == 0 || query.ToPosition > tipPos {
		query.ToPosition = tipPos
	}
	query.Descending = false
	query.Offset = 0
	it := &EventIterator{
		ledger:   ledger,
		query:    query,
		pageSize: pageSize,
	}
	if tipPos == 0 || query.FromPosition > query.ToPosition {
		it.done = true
	}
	if query.FromPosition > 0 {
		it.position = query.FromPosition - 1
	}
	return it
}

// Next returns the next event, or ErrIteratorEnd when the range is exhausted
func (it *EventIterator) Next(ctx context.Context) (Event, error) {
	if it.idx >= len(it.page) {
		if it.done {
			return Event{}, ErrIteratorEnd
		}
		q := it.query
		q.FromPosition = it.position + 1
		q.Limit = it.pageSize
		page, err := it.ledger.QueryEvents(ctx, q)
		if err != nil {
			return Event{}, err
		}
		if len(page) < it.pageSize {
			it.done = true
		}
		it.page = page
		it.idx = 0
		if len(page) == 0 {
			return Event{}, ErrIteratorEnd
		}
	}
	ev := it.page[it.idx]
	it.idx++
	it.position = ev.Position
	return ev, nil
}

// Position returns the position of the last event returned by Next
func (it *EventIterator) Position() uint64 {
	return it.position
}

// Collect drains the iterator
func (it *EventIterator) Collect(ctx context.Context) ([]Event, error) {
	var ret []Event
	for {
		ev, err := it.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrIteratorEnd) {
				return ret, nil
			}
			return nil, err
		}
		ret = append(ret, ev)
	}
}
