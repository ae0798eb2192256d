package irrd

import (
	"bytes"
	"io"
	"sync"
)

// testConn is a scripted transport: reads deliver previously enqueued
// chunks one per call (so tests control exactly how the byte stream is
// sliced), writes are recorded, and an exhausted or closed conn reads EOF.
type testConn struct {
	lock      sync.Mutex
	readQueue [][]byte
	writeBuf  bytes.Buffer
	closed    bool
	writeErr  error
}

func newTestConn() *testConn {
	return &testConn{}
}

func (conn *testConn) enqueueRead(chunk []byte) {
	conn.lock.Lock()
	conn.readQueue = append(conn.readQueue, append([]byte(nil), chunk...))
	conn.lock.Unlock()
}

func (conn *testConn) enqueueReadString(chunk string) {
	conn.enqueueRead([]byte(chunk))
}

func (conn *testConn) Read(buffer []byte) (int, error) {
	conn.lock.Lock()
	defer conn.lock.Unlock()

	if conn.closed || len(conn.readQueue) == 0 {
		return 0, io.EOF
	}
	chunk := conn.readQueue[0]
	if len(chunk) <= len(buffer) {
		copy(buffer, chunk)
		conn.readQueue = conn.readQueue[1:]
		return len(chunk), nil
	}
	copy(buffer, chunk[:len(buffer)])
	conn.readQueue[0] = chunk[len(buffer):]
	return len(buffer), nil
}

func (conn *testConn) Write(buffer []byte) (int, error) {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	if conn.writeErr != nil {
		return 0, conn.writeErr
	}
	if conn.closed {
		return 0, io.EOF
	}
	return conn.writeBuf.Write(buffer)
}

func (conn *testConn) Close() error {
	conn.lock.Lock()
	conn.closed = true
	conn.lock.Unlock()
	return nil
}

func (conn *testConn) WrittenString() string {
	conn.lock.Lock()
	defer conn.lock.Unlock()
	return conn.writeBuf.String()
}
