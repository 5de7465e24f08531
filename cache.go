/*
Copyright © 2026 the InMAP authors.
This file is part of Regrid.

Regrid is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Regrid is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Regrid.  If not, see <http://www.gnu.org/licenses/>.
*/

package regrid

import (
	"context"
	"fmt"
	"sync"

	"github.com/ctessum/requestcache"
)

// defaultCacheSize is the number of operators held in a WorkerCache when no
// size is given.
const defaultCacheSize = 10

// cachedOperator is one WorkerCache entry: an operator together with its
// precomputed total-weight vector, keyed by weight-descriptor identity.
type cachedOperator struct {
	Op     *Operator
	Totals []float64
}

// WorkerCache is a process-local cache of resolved operators for chunked
// application. Concurrent requests for the same key are deduplicated so the
// operator is resolved once; entries for distinct keys are evicted in LRU
// order once the cache is full. A WorkerCache is an explicit dependency of
// the engines that share it, never ambient state.
type WorkerCache struct {
	size int

	mu    sync.Mutex
	cache *requestcache.Cache
}

// NewWorkerCache creates a cache holding up to size operators;
// size <= 0 selects the default.
func NewWorkerCache(size int) *WorkerCache {
	if size <= 0 {
		size = defaultCacheSize
	}
	return &WorkerCache{size: size}
}

// operator returns the entry for key, calling build to resolve it on a miss.
// build runs at most once per key among concurrent callers.
func (c *WorkerCache) operator(ctx context.Context, key string, build func() (*Operator, []float64, error)) (*cachedOperator, error) {
	c.mu.Lock()
	if c.cache == nil {
		c.cache = requestcache.NewCache(func(ctx context.Context, request interface{}) (interface{}, error) {
			op, totals, err := request.(func() (*Operator, []float64, error))()
			if err != nil {
				return nil, err
			}
			return &cachedOperator{Op: op, Totals: totals}, nil
		}, 1, requestcache.Deduplicate(), requestcache.Memory(c.size))
	}
	cache := c.cache
	c.mu.Unlock()

	result, err := cache.NewRequest(ctx, build, key).Result()
	if err != nil {
		return nil, err
	}
	e, ok := result.(*cachedOperator)
	if !ok {
		return nil, fmt.Errorf("regrid: operator cache returned type %T", result)
	}
	return e, nil
}

// Clear empties the cache. Engines holding the cache keep working; the next
// request repopulates it.
func (c *WorkerCache) Clear() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}
