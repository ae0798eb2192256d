package irrd

import (
	"testing"
	"time"
)

func connectOk(t *testing.T, conn *testConn, options ...Option) *Conn {
	t.Helper()
	session, err := NewConn(conn, options...)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	return session
}

func TestHandshakeDefaults(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\n")
	connectOk(t, conn)

	want := "!!\n!n" + DefaultClientID + "\n"
	if got := conn.WrittenString(); got != want {
		t.Fatalf("handshake wrote %q, want %q", got, want)
	}
}

func TestHandshakeWithOptions(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\nC\n")
	connectOk(t, conn, WithClientID("peerctl/2.1"), WithServerTimeout(90*time.Second))

	want := "!!\n!npeerctl/2.1\n!t90\n"
	if got := conn.WrittenString(); got != want {
		t.Fatalf("handshake wrote %q, want %q", got, want)
	}
}

func TestHandshakeEmptyClientIDSkipsIdentification(t *testing.T) {
	conn := newTestConn()
	connectOk(t, conn, WithClientID(""))

	if got := conn.WrittenString(); got != "!!\n" {
		t.Fatalf("handshake wrote %q, want %q", got, "!!\n")
	}
}

func TestHandshakeToleratesIdentificationRefusal(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("F unknown command\n")
	session := connectOk(t, conn)

	// The refusal must not leave the session unusable.
	conn.enqueueReadString("A5\n4.4.2\n")
	version, err := session.Version()
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version != "4.4.2" {
		t.Fatalf("version = %q", version)
	}
}

func TestHandshakeTransportFailure(t *testing.T) {
	conn := newTestConn()
	_ = conn.Close()
	if _, err := NewConn(conn); ErrorCode(err) != ConnectionError {
		t.Fatalf("NewConn on closed transport = %v, want ConnectionError", err)
	}
}

func TestConnQueryHelpers(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\n")
	session := connectOk(t, conn)

	conn.enqueueReadString("A27\n192.0.2.0/24 192.0.2.128/25\n")
	routes, err := session.IPv4Routes("AS64496")
	if err != nil {
		t.Fatalf("IPv4Routes: %v", err)
	}
	if len(routes) != 2 || routes[0] != "192.0.2.0/24" || routes[1] != "192.0.2.128/25" {
		t.Fatalf("routes = %v", routes)
	}

	conn.enqueueReadString("A14\n2001:db8::/32 \n")
	v6, err := session.IPv6Routes("AS64496")
	if err != nil {
		t.Fatalf("IPv6Routes: %v", err)
	}
	if len(v6) != 1 || v6[0] != "2001:db8::/32" {
		t.Fatalf("v6 routes = %v", v6)
	}

	conn.enqueueReadString("D\n")
	if _, err := session.ASSetMembers("AS-NONE"); ErrorCode(err) != KeyNotFoundError {
		t.Fatalf("ASSetMembers = %v, want KeyNotFoundError", err)
	}
}

func TestConnPipelineExclusive(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\n")
	session := connectOk(t, conn)

	pipeline, err := session.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if _, err := pipeline.Submit(IPv4Routes("AS64496")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := session.Pipeline(); ErrorCode(err) != PipelineActiveError {
		t.Fatalf("second Pipeline = %v, want PipelineActiveError", err)
	}

	// Draining the outstanding response frees the connection again.
	conn.enqueueReadString("D\n")
	if err := pipeline.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if _, err := session.Pipeline(); err != nil {
		t.Fatalf("Pipeline after drain: %v", err)
	}
}

func TestConnRefusedAfterDirtyClose(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\n")
	session := connectOk(t, conn)

	pipeline, err := session.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	if _, err := pipeline.Submit(IPv4Routes("AS64496")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	// Closing with the response unread loses the stream position.
	if err := pipeline.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := session.Pipeline(); ErrorCode(err) != ClosedError {
		t.Fatalf("Pipeline after dirty close = %v, want ClosedError", err)
	}
}

func TestConnRefusedAfterTransportFailure(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\n")
	session := connectOk(t, conn)

	pipeline, err := session.Pipeline()
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}
	response, err := pipeline.Submit(IPv4Routes("AS64496"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := response.Status(); ErrorCode(err) != ConnectionError {
		t.Fatalf("Status = %v, want ConnectionError", err)
	}
	if _, err := session.Pipeline(); ErrorCode(err) != ClosedError {
		t.Fatalf("Pipeline after failure = %v, want ClosedError", err)
	}
}

func TestConnClose(t *testing.T) {
	conn := newTestConn()
	conn.enqueueReadString("C\n")
	session := connectOk(t, conn)

	if err := session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := conn.WrittenString(); got != "!!\n!n"+DefaultClientID+"\n!q\n" {
		t.Fatalf("wrote %q", got)
	}
	if !conn.closed {
		t.Fatalf("transport not closed")
	}
}
