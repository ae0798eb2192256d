package irrd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Pipelining depth control, mirroring the server-side limits of IRRd's
// multiple-command mode.
const (
	defaultMaxInFlight = 1000
	defaultMinBatch    = 100

	readChunkSize = 4096
)

// Pipeline executes queries in order over a single connection, matching each
// submitted query to the next response frame the server sends. Multiple
// queries may be in flight before any response is consumed; responses are
// resolved strictly in submission order.
//
// A Pipeline serializes its own state, but the underlying transport is
// single-writer single-reader: response consumption blocks while frame bytes
// are awaited, so interleaving submit and consume calls from multiple
// goroutines gains nothing and simply queues on the internal lock.
type Pipeline struct {
	lock sync.Mutex

	transport io.ReadWriter
	buf       *buffer
	maxBody   int

	// pending holds every handle not yet fully resolved and drained, in
	// submission order. The prefix pending[:written] has been written to
	// the transport; the rest is queued for a later flush.
	pending     []*Response
	written     int
	maxInFlight int
	minBatch    int

	closed bool
	dirty  bool  // closed with responses unread; the stream position is lost
	err    error // terminal connection error, nil while the pipeline is usable
}

func newPipeline(transport io.ReadWriter, capacity int, maxBody int) *Pipeline {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyLength
	}
	return &Pipeline{
		transport:   transport,
		buf:         newBuffer(capacity),
		maxBody:     maxBody,
		maxInFlight: defaultMaxInFlight,
		minBatch:    defaultMinBatch,
	}
}

// Submit validates and enqueues a query, writing it to the transport as
// in-flight capacity allows, and returns the handle its response will
// resolve through. Submission order defines response order.
func (pipeline *Pipeline) Submit(query Query) (*Response, error) {
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()

	if pipeline.closed || pipeline.err != nil {
		return nil, pipeline.closedErrorLocked()
	}
	if strings.ContainsRune(query.cmd, rune(delimiter)) {
		return nil, NewError(ArgumentError, fmt.Sprintf("query %q contains an embedded delimiter", query.cmd))
	}

	decoder := query.decoder
	if decoder == nil {
		decoder = WordDecoder
	}
	response := &Response{pipeline: pipeline, query: query, decoder: decoder}
	pipeline.pending = append(pipeline.pending, response)
	if err := pipeline.flushLocked(); err != nil {
		return nil, err
	}
	return response, nil
}

// Expand submits initial and, while streaming its records, submits the
// follow-up queries produced by expand for each record. Follow-ups are
// written while the initial response is still being read, so their
// responses are already underway once the initial body is drained.
func (pipeline *Pipeline) Expand(initial Query, expand func(record string) []Query) error {
	response, err := pipeline.Submit(initial)
	if err != nil {
		return err
	}
	for {
		record, err := response.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for _, query := range expand(record) {
			if _, err := pipeline.Submit(query); err != nil {
				return err
			}
		}
	}
}

// Each consumes every outstanding response in submission order, invoking fn
// once per record. Registry-level outcomes (key not found, key not unique,
// server error) and response-local decode failures are logged and skipped;
// connection-fatal errors and errors returned by fn abort the walk.
func (pipeline *Pipeline) Each(fn func(query Query, record string) error) error {
	for {
		response := pipeline.front()
		if response == nil {
			return nil
		}
		status, err := response.Status()
		if err != nil {
			if connectionFatal(err) {
				return err
			}
			log.WithError(err).Warn("skipping failed response")
			_ = response.Discard()
			continue
		}
		if status != StatusData {
			if status != StatusSuccess {
				log.WithFields(log.Fields{
					"query":  response.query.cmd,
					"status": status.String(),
				}).Warn("skipping response")
			}
			_ = response.Discard()
			continue
		}
		for {
			record, err := response.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				if connectionFatal(err) {
					return err
				}
				log.WithError(err).Warn("skipping undecodable response remainder")
				_ = response.Discard()
				break
			}
			if err := fn(response.query, record); err != nil {
				return err
			}
		}
	}
}

// Drain consumes and discards every outstanding response, returning any
// response-local or connection errors encountered, aggregated. The pipeline
// can be reused afterwards if no connection-fatal error occurred.
func (pipeline *Pipeline) Drain() error {
	var errs *multierror.Error
	for {
		response := pipeline.front()
		if response == nil {
			break
		}
		if err := response.Discard(); err != nil {
			errs = multierror.Append(errs, err)
		}
		if localErr := response.localError(); localErr != nil {
			errs = multierror.Append(errs, localErr)
		}
	}
	return errs.ErrorOrNil()
}

// Close marks the pipeline closed. Handles still unresolved resolve to a
// closed-connection error, and subsequent Submit calls fail the same way.
// Close does not consume unread responses from the transport; use Drain
// first when the underlying connection is to be reused.
func (pipeline *Pipeline) Close() error {
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()

	if pipeline.closed {
		return nil
	}
	pipeline.closed = true
	closeErr := NewError(ClosedError, "pipeline closed with unresolved responses")
	for _, response := range pipeline.pending {
		if !response.finished {
			pipeline.dirty = true
			response.resolved = true
			response.finished = true
			if response.err == nil {
				response.err = closeErr
			}
		}
	}
	pipeline.pending = nil
	pipeline.written = 0
	return nil
}

// Err returns the terminal connection error, or nil while the pipeline is
// usable.
func (pipeline *Pipeline) Err() error {
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	return pipeline.err
}

// Outstanding reports how many submitted queries have not yet been fully
// resolved and drained.
func (pipeline *Pipeline) Outstanding() int {
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	return len(pipeline.pending)
}

func (pipeline *Pipeline) state() (outstanding int, dirty bool, terminalErr error) {
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	return len(pipeline.pending), pipeline.dirty, pipeline.err
}

func (pipeline *Pipeline) front() *Response {
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	if len(pipeline.pending) == 0 {
		return nil
	}
	return pipeline.pending[0]
}

func (pipeline *Pipeline) closedErrorLocked() *Error {
	if pipeline.err != nil {
		return NewError(ClosedError, "connection closed", pipeline.err)
	}
	return NewError(ClosedError, "pipeline closed")
}

// flushLocked writes queued queries to the transport, respecting the
// in-flight cap and deferring small batches until capacity frees up. The
// front of the queue is always flushed eventually because capacity equals
// maxInFlight whenever nothing is in flight.
func (pipeline *Pipeline) flushLocked() error {
	if pipeline.written == len(pipeline.pending) {
		return nil
	}
	capacity := pipeline.maxInFlight - pipeline.written
	if capacity < pipeline.minBatch && pipeline.written > 0 {
		log.WithField("capacity", capacity).Trace("deferring flush until a minimum batch fits")
		return nil
	}
	upto := min(pipeline.written+capacity, len(pipeline.pending))
	for pipeline.written < upto {
		query := pipeline.pending[pipeline.written].query
		log.WithField("query", query.cmd).Debug("writing query")
		if _, err := io.WriteString(pipeline.transport, query.cmd+"\n"); err != nil {
			pipeline.failLocked(NewError(ConnectionError, "transport write failed", err))
			return pipeline.err
		}
		pipeline.written++
	}
	return nil
}

// resolveLocked brings the given handle to its resolved state, first fully
// draining every older handle so that frames are never assigned out of
// order and abandoned bodies do not corrupt the buffer cursors.
func (pipeline *Pipeline) resolveLocked(response *Response) {
	for !response.resolved {
		front := pipeline.pending[0]
		if front != response {
			pipeline.drainLocked(front)
			continue
		}
		pipeline.resolveFrontLocked(response)
	}
}

func (pipeline *Pipeline) resolveFrontLocked(response *Response) {
	if err := pipeline.flushLocked(); err != nil {
		return
	}
	recovered, err := pipeline.nextFrameLocked()
	if err != nil {
		return
	}

	response.resolved = true
	response.status = recovered.status
	response.message = recovered.message
	response.length = recovered.length

	if recovered.status != StatusData {
		pipeline.finishFrontLocked(response)
		return
	}

	response.bodyLeft = recovered.length
	if !response.query.expectData && recovered.length > 0 {
		response.err = NewError(UnexpectedDataError,
			fmt.Sprintf("unexpected %d byte body for query %q", recovered.length, response.query.cmd))
		return
	}
	if response.query.expectData && recovered.length == 0 {
		log.WithField("query", response.query.cmd).Warn("unexpected zero length response")
	}
}

// nextFrameLocked runs the read/parse loop: if the unconsumed bytes already
// yield a complete frame it is taken without touching the transport,
// otherwise one read is performed and parsing retried. Only the status line
// is consumed here; a data frame's body stays buffered for streaming.
func (pipeline *Pipeline) nextFrameLocked() (frame, error) {
	for {
		recovered, result := parseFrame(pipeline.buf.unconsumed(), pipeline.maxBody)
		switch result {
		case parseComplete:
			pipeline.buf.consume(recovered.headerLen)
			log.WithFields(log.Fields{
				"status": recovered.status.String(),
				"length": recovered.length,
			}).Trace("recovered response frame")
			return recovered, nil
		case parseMalformed:
			pipeline.failLocked(NewError(ProtocolError, "malformed response framing"))
			return frame{}, pipeline.err
		}
		if err := pipeline.fetchLocked(); err != nil {
			return frame{}, err
		}
	}
}

// fetchLocked performs one transport read into the buffer's writable region.
// Closure or failure while a frame is expected is terminal.
func (pipeline *Pipeline) fetchLocked() error {
	pipeline.buf.reserve(readChunkSize)
	region := pipeline.buf.writableRegion()
	n, err := pipeline.transport.Read(region)
	if n > 0 {
		pipeline.buf.advance(n)
		log.WithField("bytes", n).Trace("fetched from transport")
		return nil
	}
	if err != nil && err != io.EOF {
		pipeline.failLocked(NewError(ConnectionError, "transport read failed", err))
	} else {
		pipeline.failLocked(NewError(ConnectionError, "transport closed mid-response"))
	}
	return pipeline.err
}

// failLocked transitions the pipeline to its terminal state and broadcasts
// the error to every handle that has not already finished.
func (pipeline *Pipeline) failLocked(err error) {
	if pipeline.err != nil {
		return
	}
	pipeline.err = err
	pipeline.closed = true
	log.WithError(err).Debug("failing pipeline and all pending responses")
	for _, response := range pipeline.pending {
		if !response.finished {
			if response.err == nil {
				response.err = err
			}
			response.resolved = true
			response.finished = true
		}
	}
	pipeline.pending = nil
	pipeline.written = 0
}

// drainLocked resolves the front handle if necessary and discards whatever
// remains of its body, so the next frame can be parsed.
func (pipeline *Pipeline) drainLocked(response *Response) {
	if !response.resolved {
		pipeline.resolveFrontLocked(response)
	}
	if response.finished {
		pipeline.popLocked(response)
		return
	}
	if response.bodyLeft > 0 {
		log.WithFields(log.Fields{
			"query":     response.query.cmd,
			"remaining": response.bodyLeft,
		}).Debug("discarding unread response body")
	}
	pipeline.finishFrontLocked(response)
}

// finishFrontLocked consumes any unread body bytes plus the trailing
// delimiter of the front handle's frame and retires the handle.
func (pipeline *Pipeline) finishFrontLocked(response *Response) {
	if response.status == StatusData && !response.finished {
		pipeline.buf.consume(response.bodyLeft + 1)
		response.bodyLeft = 0
	}
	response.finished = true
	pipeline.popLocked(response)
}

func (pipeline *Pipeline) popLocked(response *Response) {
	if len(pipeline.pending) == 0 || pipeline.pending[0] != response {
		return
	}
	pipeline.pending = pipeline.pending[1:]
	if pipeline.written > 0 {
		pipeline.written--
	}
	// Freed in-flight capacity may release deferred queries.
	_ = pipeline.flushLocked()
}

func connectionFatal(err error) bool {
	switch ErrorCode(err) {
	case ConnectionError, ProtocolError, ClosedError:
		return true
	}
	return false
}
