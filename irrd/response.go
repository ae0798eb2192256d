package irrd

import "io"

// Response is the handle returned by Pipeline.Submit, bound to the next
// frame the server sends for its query. It resolves lazily: the first call
// to Status, Next, Collect or Discard blocks until the frame's status line
// has been read, draining any older outstanding responses first.
//
// A data response is consumed as a finite, non-restartable record sequence
// with Next. A handle abandoned before being drained is drained implicitly
// when a younger handle is used.
type Response struct {
	pipeline *Pipeline
	query    Query
	decoder  RecordDecoder

	resolved bool
	finished bool
	status   Status
	message  string
	length   int
	bodyLeft int
	err      error
}

// Query returns the query this handle answers.
func (response *Response) Query() Query {
	return response.query
}

// Status resolves the handle and reports how the server answered. The error
// is non-nil for connection-fatal conditions and for response-local faults
// (unexpected data, decode failure); registry-level outcomes are statuses,
// not errors.
func (response *Response) Status() (Status, error) {
	pipeline := response.pipeline
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	if !response.resolved {
		pipeline.resolveLocked(response)
	}
	return response.status, response.err
}

// ErrorMessage returns the diagnostic text of an error response, resolving
// the handle if needed. It is empty for every other status.
func (response *Response) ErrorMessage() string {
	pipeline := response.pipeline
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	if !response.resolved {
		pipeline.resolveLocked(response)
	}
	return response.message
}

// Length returns the declared body length of a data response.
func (response *Response) Length() (int, error) {
	pipeline := response.pipeline
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	if !response.resolved {
		pipeline.resolveLocked(response)
	}
	return response.length, response.err
}

// Next decodes the next record from the response body, blocking while
// frame bytes are awaited from the transport. It returns io.EOF once the
// body is exhausted, and for every non-data status. Positions cannot be
// replayed.
func (response *Response) Next() (string, error) {
	pipeline := response.pipeline
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()

	if !response.resolved {
		pipeline.resolveLocked(response)
	}
	if response.err != nil {
		return "", response.err
	}
	if response.status != StatusData || response.finished {
		return "", io.EOF
	}

	body := pipeline.buf.unconsumed()[:response.bodyLeft]
	record, consumed, err := response.decoder.Decode(body)
	if consumed > response.bodyLeft {
		consumed = response.bodyLeft
	}
	if consumed > 0 {
		pipeline.buf.consume(consumed)
		response.bodyLeft -= consumed
	}
	switch {
	case err == io.EOF:
		pipeline.finishFrontLocked(response)
		return "", io.EOF
	case err != nil:
		response.err = NewError(DecodeError, err)
		pipeline.finishFrontLocked(response)
		return "", response.err
	case consumed == 0:
		// A decoder that makes no progress would spin forever.
		response.err = NewError(DecodeError, "record decoder made no progress")
		pipeline.finishFrontLocked(response)
		return "", response.err
	}
	return record, nil
}

// Collect resolves the handle and gathers all records of a data response.
// Registry-level outcomes map to typed errors: key-not-found, key-not-unique
// and server error responses return nil records and a matching *Error. An
// empty success returns nil, nil.
func (response *Response) Collect() ([]string, error) {
	status, err := response.Status()
	if err != nil {
		return nil, err
	}
	switch status {
	case StatusSuccess:
		return nil, nil
	case StatusKeyNotFound:
		return nil, NewError(KeyNotFoundError, response.query.cmd)
	case StatusKeyNotUnique:
		return nil, NewError(KeyNotUniqueError, response.query.cmd)
	case StatusError:
		return nil, NewError(ServerError, response.ErrorMessage())
	}

	var records []string
	for {
		record, err := response.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

// Discard abandons the response, consuming whatever remains of its body so
// the next frame can be parsed. It returns an error only for
// connection-fatal conditions; response-local faults are dropped.
func (response *Response) Discard() error {
	pipeline := response.pipeline
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()

	for !response.finished {
		front := pipeline.pending[0]
		pipeline.drainLocked(front)
	}
	if connectionFatal(response.err) {
		return response.err
	}
	return nil
}

// localError returns the response-local fault recorded on the handle, nil
// for clean responses and for connection-fatal failures.
func (response *Response) localError() error {
	pipeline := response.pipeline
	pipeline.lock.Lock()
	defer pipeline.lock.Unlock()
	if response.err != nil && !connectionFatal(response.err) {
		return response.err
	}
	return nil
}
