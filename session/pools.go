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

package session

import (
	"context"
	"sync"
	"time"

	libhost "github.com/sabouaram/cqlcore/host"
	loglib "github.com/sabouaram/cqlcore/logger"
	libpool "github.com/sabouaram/cqlcore/pool"
)

const defaultConnectTimeout = 5 * time.Second

// poolManager keeps one Pool per up Host, building it on a Host Up
// event and tearing it down on Down/Remove, per spec.md §4.8 ("Pools
// are rebuilt on host Up and torn down on host Remove or permanent
// Down").
type poolManager struct {
	cfg Config
	log loglib.Logger

	mu    sync.RWMutex
	pools map[string]libpool.Pool

	sub    *libhost.Subscription
	done   chan struct{}
	stopWg sync.WaitGroup
}

func newPoolManager(cfg Config) *poolManager {
	pm := &poolManager{
		cfg:   cfg,
		log:   cfg.Logger,
		pools: make(map[string]libpool.Pool),
		done:  make(chan struct{}),
	}
	if pm.log == nil {
		pm.log = loglib.New()
	}

	for _, h := range cfg.Hosts.Snapshot() {
		if h.Up() {
			pm.open(h.Endpoint)
		}
	}

	pm.sub = cfg.Hosts.Subscribe()
	pm.stopWg.Add(1)
	go pm.watch()

	return pm
}

func (pm *poolManager) watch() {
	defer pm.stopWg.Done()
	for {
		select {
		case ev, ok := <-pm.sub.C:
			if !ok {
				return
			}
			switch ev.Type {
			case libhost.EventUp:
				pm.open(ev.Host.Endpoint)
			case libhost.EventDown, libhost.EventRemoved:
				pm.close(ev.Host.Endpoint)
			}
		case <-pm.done:
			return
		}
	}
}

func (pm *poolManager) open(endpoint string) {
	pm.mu.Lock()
	if _, exists := pm.pools[endpoint]; exists {
		pm.mu.Unlock()
		return
	}
	pm.mu.Unlock()

	timeout := pm.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	p, err := libpool.New(ctx, endpoint, libpool.Config{
		CoreSize:       pm.cfg.PoolCoreSize,
		MaxSize:        pm.cfg.PoolMaxSize,
		PerConnLimit:   pm.cfg.PoolPerConnLimit,
		ConnectTimeout: pm.cfg.ConnectTimeout,
		Dial:           libpool.Dialer(pm.cfg.Dial),
		Logger:         pm.log,
	})
	if err != nil {
		pm.log.Warn("session: pool open failed", loglib.Fields{"endpoint": endpoint, "error": err})
		return
	}

	pm.mu.Lock()
	if _, exists := pm.pools[endpoint]; exists {
		pm.mu.Unlock()
		p.Close()
		return
	}
	pm.pools[endpoint] = p
	pm.mu.Unlock()
}

func (pm *poolManager) close(endpoint string) {
	pm.mu.Lock()
	p, ok := pm.pools[endpoint]
	if ok {
		delete(pm.pools, endpoint)
	}
	pm.mu.Unlock()

	if ok {
		p.Close()
	}
}

func (pm *poolManager) get(endpoint string) (libpool.Pool, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	p, ok := pm.pools[endpoint]
	return p, ok
}

func (pm *poolManager) Close() {
	close(pm.done)
	if pm.sub != nil {
		pm.sub.Unsubscribe()
	}
	pm.stopWg.Wait()

	pm.mu.Lock()
	pools := pm.pools
	pm.pools = make(map[string]libpool.Pool)
	pm.mu.Unlock()

	for _, p := range pools {
		p.Close()
	}
}
