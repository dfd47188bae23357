/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package prepared implements the process-wide Prepared Statement Cache
// (spec.md §3): a (query text, keyspace) -> prepared-id map with
// singleflight-deduplicated preparation.
package prepared

import (
	"context"

	"golang.org/x/sync/singleflight"

	libatm "github.com/sabouaram/cqlcore/atomic"
)

// Preparer issues one PREPARE request and returns the server-assigned
// prepared id.
type Preparer func(ctx context.Context) (id []byte, err error)

// Cache is the process-wide query-text+keyspace -> prepared-id map. A
// single Cache is shared by every Connection in a Session: preparing
// the same statement concurrently from many goroutines collapses into
// one PREPARE request (spec.md §5, "Prepared cache: concurrent
// insert-or-get").
type Cache struct {
	entries libatm.MapTyped[string, []byte]
	group   singleflight.Group
}

func New() *Cache {
	return &Cache{entries: libatm.NewMapTyped[string, []byte]()}
}

func key(keyspace, query string) string {
	return keyspace + "\x00" + query
}

// Get returns the cached prepared id for (keyspace, query), if any.
func (c *Cache) Get(keyspace, query string) ([]byte, bool) {
	return c.entries.Load(key(keyspace, query))
}

// GetOrPrepare returns the cached prepared id, or calls prepare exactly
// once per distinct (keyspace, query) even under concurrent callers,
// caching and returning its result.
func (c *Cache) GetOrPrepare(ctx context.Context, keyspace, query string, prepare Preparer) ([]byte, error) {
	k := key(keyspace, query)
	if id, ok := c.entries.Load(k); ok {
		return id, nil
	}

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		if id, ok := c.entries.Load(k); ok {
			return id, nil
		}
		id, err := prepare(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Store(k, id)
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate drops a cached entry, e.g. after a DROP/ALTER that changes
// the statement's result metadata.
func (c *Cache) Invalidate(keyspace, query string) {
	c.entries.Delete(key(keyspace, query))
}
