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

	libconn "github.com/sabouaram/cqlcore/conn"
	libepool "github.com/sabouaram/cqlcore/errors/pool"
	libfrm "github.com/sabouaram/cqlcore/frame"
	loglib "github.com/sabouaram/cqlcore/logger"
	libpol "github.com/sabouaram/cqlcore/policy"
)

const defaultRequestTimeout = 10 * time.Second

type session struct {
	cfg   Config
	log   loglib.Logger
	pools *poolManager
}

// New builds a Session ready to Execute against cfg's Host Registry and
// Token Map, with a Pool per currently-up Host (spec.md §4.9).
func New(cfg Config) Session {
	log := cfg.Logger
	if log == nil {
		log = loglib.New()
	}
	if cfg.LoadBalancing == nil {
		cfg.LoadBalancing = &libpol.RoundRobin{}
	}
	if cfg.Retry == nil {
		cfg.Retry = libpol.DefaultRetry{}
	}
	if cfg.Speculative == nil {
		cfg.Speculative = libpol.Disabled{}
	}
	cfg.Logger = log

	s := &session{cfg: cfg, log: log}
	s.pools = newPoolManager(cfg)
	return s
}

func (s *session) Close() {
	s.pools.Close()
}

// Execute drives stmt through PLAN_NEXT_HOST -> ACQUIRE_CONN -> SEND ->
// AWAIT -> DECIDE, applying the Retry Policy to every failure, or, when
// the Speculative-Execution policy is enabled, racing plan candidates
// instead (spec.md §4.9). The speculative path records each failure as
// a cause and does not consult the Retry Policy.
func (s *session) Execute(ctx context.Context, stmt Statement) (*Result, error) {
	if stmt.Consistency.IsSerial() {
		// Top-level SERIAL/LOCAL_SERIAL is a client-side InvalidRequest,
		// not a server round trip (spec.md §9, "Ambiguity to flag").
		return nil, invalidRequestError(nil)
	}

	pc := libpol.PlanContext{Keyspace: stmt.Keyspace, RoutingKey: stmt.RoutingKey}

	var preparedID []byte
	if stmt.PrepareFirst && s.cfg.Cache != nil {
		// A plan is a single-use, stateful cursor (spec.md §4.6): the
		// prepare phase and the execute phase each need their own, so
		// preparing on a one-host plan does not leave run() with
		// nothing left to pull.
		prepPlan := s.cfg.LoadBalancing.Plan(s.cfg.Hosts.Snapshot(), pc)
		id, err := s.prepareAgainstPlan(ctx, prepPlan, stmt)
		if err != nil {
			return nil, err
		}
		preparedID = id
		stmt.PrepareFirst = false
	}

	plan := s.cfg.LoadBalancing.Plan(s.cfg.Hosts.Snapshot(), pc)
	return s.run(ctx, stmt, preparedID, plan)
}

// prepareAgainstPlan prepares stmt.Query against the first reachable
// host in the plan, reusing a cached id if one already exists.
func (s *session) prepareAgainstPlan(ctx context.Context, plan libpol.Plan, stmt Statement) ([]byte, error) {
	if id, ok := s.cfg.Cache.Get(stmt.Keyspace, stmt.Query); ok {
		return id, nil
	}
	return s.cfg.Cache.GetOrPrepare(ctx, stmt.Keyspace, stmt.Query, func(ctx context.Context) ([]byte, error) {
		causes := map[string]error{}
		for {
			endpoint, ok := plan()
			if !ok {
				return nil, newNoHostAvailableError(causes)
			}
			p, ok := s.pools.get(endpoint)
			if !ok {
				causes[endpoint] = libconn.ClosedError()
				continue
			}
			c, err := p.Acquire(ctx)
			if err != nil {
				causes[endpoint] = err
				continue
			}
			id, err := s.doPrepare(ctx, c, stmt.Query)
			if err != nil {
				causes[endpoint] = err
				continue
			}
			return id, nil
		}
	})
}

func (s *session) doPrepare(ctx context.Context, c libconn.Connection, query string) ([]byte, error) {
	w := libfrm.NewWriter()
	w.WriteLongString(query)
	ch, err := c.Send(ctx, libfrm.OpPrepare, 0, w.Bytes())
	if err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		if resp.Err != nil {
			return nil, resp.Err
		}
		if resp.Frame.Header.Opcode == libfrm.OpError {
			we, err := decodeWireError(resp.Frame.Body)
			if err != nil {
				return nil, err
			}
			return nil, &ServerError{Code: we.code, Message: we.message}
		}
		r, err := decodeResult(libfrm.ProtocolV4, resp.Frame.Body)
		if err != nil {
			return nil, err
		}
		return r.PreparedID, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run is the PLAN_NEXT_HOST -> ACQUIRE_CONN -> SEND -> AWAIT -> DECIDE
// loop. preparedID, when set, routes the request through EXECUTE
// instead of QUERY.
func (s *session) run(ctx context.Context, stmt Statement, preparedID []byte, plan libpol.Plan) (*Result, error) {
	timeout := s.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	if s.cfg.Speculative.Enabled() {
		return s.runSpeculative(ctx, stmt, preparedID, plan, timeout)
	}

	causes := map[string]error{}
	retryCount := 0
	reprepared := false
	endpoint, ok := plan()
	if !ok {
		return nil, newNoHostAvailableError(causes)
	}

	for {
		result, decision, newConsistency, err := s.attempt(ctx, endpoint, stmt, preparedID, retryCount, timeout)
		stmt.Consistency = newConsistency

		switch decision {
		case libpol.DecisionIgnore:
			return result, nil

		case libpol.DecisionRethrow:
			return nil, err

		case libpol.DecisionRetrySame:
			if _, isUnprepared := err.(*unpreparedMarker); isUnprepared {
				// Re-prepare and retry against the same host without
				// consuming a retry attempt (spec.md §8, scenario 3).
				// A second UNPREPARED is returned to the caller.
				if reprepared {
					return nil, err
				}
				reprepared = true
				s.cfg.Cache.Invalidate(stmt.Keyspace, stmt.Query)
				newID, prepErr := s.doPrepareAt(ctx, endpoint, stmt)
				if prepErr != nil {
					causes[endpoint] = prepErr
					retryCount++
					next, ok := plan()
					if !ok {
						return nil, newNoHostAvailableError(causes)
					}
					endpoint = next
					continue
				}
				preparedID = newID
				continue
			}
			causes[endpoint] = err
			retryCount++
			continue

		case libpol.DecisionRetryNext:
			causes[endpoint] = err
			retryCount++
			next, ok := plan()
			if !ok {
				return nil, newNoHostAvailableError(causes)
			}
			endpoint = next
			continue
		}
	}
}

// doPrepareAt prepares stmt.Query against a specific endpoint's Pool,
// used by the UNPREPARED auto-reprepare path where the plan has
// already committed to a host.
func (s *session) doPrepareAt(ctx context.Context, endpoint string, stmt Statement) ([]byte, error) {
	return s.cfg.Cache.GetOrPrepare(ctx, stmt.Keyspace, stmt.Query, func(ctx context.Context) ([]byte, error) {
		p, ok := s.pools.get(endpoint)
		if !ok {
			return nil, connFailure(endpoint)
		}
		c, err := p.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return s.doPrepare(ctx, c, stmt.Query)
	})
}

// attempt sends stmt once against endpoint and classifies the outcome.
// A successful Result is returned with DecisionIgnore; a server ERROR
// or transport failure is returned with whatever Decision the Retry
// Policy assigns to it.
func (s *session) attempt(ctx context.Context, endpoint string, stmt Statement, preparedID []byte, retryCount int, timeout time.Duration) (*Result, libpol.Decision, libfrm.Consistency, error) {
	p, ok := s.pools.get(endpoint)
	if !ok {
		return nil, libpol.DecisionRetryNext, stmt.Consistency, connFailure(endpoint)
	}
	c, err := p.Acquire(ctx)
	if err != nil {
		return nil, libpol.DecisionRetryNext, stmt.Consistency, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body []byte
	var opcode libfrm.Opcode
	if preparedID != nil {
		body, err = buildExecuteBody(libfrm.ProtocolV4, preparedID, stmt)
		opcode = libfrm.OpExecute
	} else {
		body, err = buildQueryBody(libfrm.ProtocolV4, stmt)
		opcode = libfrm.OpQuery
	}
	if err != nil {
		return nil, libpol.DecisionRethrow, stmt.Consistency, err
	}

	ch, err := c.Send(reqCtx, opcode, 0, body)
	if err != nil {
		return nil, libpol.DecisionRetryNext, stmt.Consistency, err
	}

	select {
	case resp := <-ch:
		if resp.Err != nil {
			return nil, libpol.DecisionRetryNext, stmt.Consistency, resp.Err
		}
		return s.decideResponse(resp.Frame, stmt, retryCount)
	case <-reqCtx.Done():
		return nil, libpol.DecisionRetryNext, stmt.Consistency, reqCtx.Err()
	}
}

func (s *session) decideResponse(fr libfrm.Frame, stmt Statement, retryCount int) (*Result, libpol.Decision, libfrm.Consistency, error) {
	if fr.Header.Opcode != libfrm.OpError {
		res, err := decodeResult(libfrm.ProtocolV4, fr.Body)
		if err != nil {
			return nil, libpol.DecisionRethrow, stmt.Consistency, err
		}
		return res, libpol.DecisionIgnore, stmt.Consistency, nil
	}

	we, err := decodeWireError(fr.Body)
	if err != nil {
		return nil, libpol.DecisionRethrow, stmt.Consistency, err
	}

	if we.terminal() {
		return nil, libpol.DecisionRethrow, stmt.Consistency, &ServerError{Code: we.code, Message: we.message}
	}

	// UNPREPARED is handled outside the Retry Policy's decision table:
	// re-prepare and retry once without consuming a retry attempt
	// (spec.md §8, scenario 3).
	if we.code == libfrm.ErrUnprepared && s.cfg.Cache != nil {
		return nil, libpol.DecisionRetrySame, stmt.Consistency, &unpreparedMarker{id: we.unpreparedID}
	}

	rctx := libpol.RetryContext{
		Kind:          we.retryKind(),
		Consistency:   we.consistency,
		WriteType:     we.writeTypeKind(),
		RetryCount:    retryCount,
		Idempotent:    stmt.Idempotent,
		Received:      we.received,
		BlockFor:      we.blockFor,
		DataRetrieved: we.dataPresent,
	}
	decision, newConsistency := s.cfg.Retry.Decide(rctx)
	return nil, decision, newConsistency, &ServerError{Code: we.code, Message: we.message}
}

// unpreparedMarker is an internal sentinel error carrying the id the
// server reported as unknown, so run's retry-same branch can reprepare
// before resending.
type unpreparedMarker struct {
	id []byte
}

func (u *unpreparedMarker) Error() string { return "unprepared statement" }

func connFailure(endpoint string) error {
	return &ServerError{Message: "no pool for host " + endpoint}
}

// runSpeculative launches successive attempts against the plan's
// candidates Delay() apart, up to MaxRuns() extras, returning the
// first success and cancelling the rest (spec.md §4.7).
func (s *session) runSpeculative(ctx context.Context, stmt Statement, preparedID []byte, plan libpol.Plan, timeout time.Duration) (*Result, error) {
	type outcome struct {
		result *Result
		err    error
	}

	ctx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	results := make(chan outcome, s.cfg.Speculative.MaxRuns()+1)
	var wg sync.WaitGroup
	// Several attempts race concurrently here, unlike run's single
	// sequential loop, so failures are collected through the same
	// thread-safe error pool the rest of the module uses for
	// concurrent fan-out instead of a hand-rolled mutex+map.
	causes := libepool.New()

	launch := func(endpoint string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, _, err := s.attempt(ctx, endpoint, stmt, preparedID, 0, timeout)
			if err != nil {
				causes.Add(&endpointError{endpoint: endpoint, err: err})
				return
			}
			select {
			case results <- outcome{result: res}:
			case <-ctx.Done():
			}
		}()
	}

	endpoint, ok := plan()
	if !ok {
		return nil, newNoHostAvailableError(causesByEndpoint(causes))
	}
	launch(endpoint)

	launched := 1
	timer := time.NewTimer(s.cfg.Speculative.Delay())
	defer timer.Stop()

	for {
		select {
		case out := <-results:
			go func() { wg.Wait(); close(results) }()
			return out.result, nil

		case <-timer.C:
			if launched > s.cfg.Speculative.MaxRuns() || !s.cfg.Speculative.Allow() {
				timer.Reset(s.cfg.Speculative.Delay())
				continue
			}
			next, ok := plan()
			if ok {
				launch(next)
				launched++
			}
			timer.Reset(s.cfg.Speculative.Delay())

		case <-ctx.Done():
			wg.Wait()
			return nil, newNoHostAvailableError(causesByEndpoint(causes))
		}
	}
}

// endpointError tags an attempt failure with the host it came from, so
// a libepool.Pool (built for concurrent-safe collection, not per-key
// lookup) can still be turned back into a NoHostAvailableError's
// per-host cause map.
type endpointError struct {
	endpoint string
	err      error
}

func (e *endpointError) Error() string { return e.endpoint + ": " + e.err.Error() }

func causesByEndpoint(p libepool.Pool) map[string]error {
	m := make(map[string]error, p.Len())
	for _, e := range p.Slice() {
		if ee, ok := e.(*endpointError); ok {
			m[ee.endpoint] = ee.err
		}
	}
	return m
}

// AwaitSchemaAgreement polls every up Host's schema version via that
// Host's Pool until they agree or SchemaAgreementTimeout elapses
// (spec.md §4.9).
func (s *session) AwaitSchemaAgreement(ctx context.Context) error {
	timeout := s.cfg.SchemaAgreementTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		versions := map[string]struct{}{}
		for _, h := range s.cfg.Hosts.Snapshot() {
			if !h.Up() {
				continue
			}
			p, ok := s.pools.get(h.Endpoint)
			if !ok {
				continue
			}
			c, err := p.Acquire(ctx)
			if err != nil {
				continue
			}
			v, err := s.schemaVersion(ctx, c)
			if err != nil {
				continue
			}
			versions[v] = struct{}{}
		}

		if len(versions) <= 1 {
			return nil
		}
		if time.Now().After(deadline) {
			return schemaAgreementTimeoutError()
		}

		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *session) schemaVersion(ctx context.Context, c libconn.Connection) (string, error) {
	w := libfrm.NewWriter()
	w.WriteLongString("SELECT schema_version FROM system.local")
	w.WriteUint16(uint16(libfrm.ConsistencyOne))
	w.WriteByte(0)

	ch, err := c.Send(ctx, libfrm.OpQuery, 0, w.Bytes())
	if err != nil {
		return "", err
	}
	select {
	case resp := <-ch:
		if resp.Err != nil {
			return "", resp.Err
		}
		res, err := decodeResult(libfrm.ProtocolV4, resp.Frame.Body)
		if err != nil {
			return "", err
		}
		if len(res.Rows) == 0 {
			return "", nil
		}
		return res.Rows[0].Text("schema_version"), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
