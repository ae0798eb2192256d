package irrd

import (
	"crypto/tls"
	"io"
	"net"
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// Client and protocol behavior defaults.
const (
	ClientVersion = "0.1.0"

	// DefaultClientID is sent to the server at connection startup unless
	// overridden with WithClientID.
	DefaultClientID = "irrd-client-go-" + ClientVersion

	// DefaultCapacity is the initial read buffer size of a new pipeline.
	DefaultCapacity = 1 << 20

	// DefaultMaxBodyLength bounds the declared body length the frame
	// parser accepts; larger declarations are treated as malformed framing.
	DefaultMaxBodyLength = 512 << 20
)

// Client is the builder for IRRd query protocol connections. Construct one
// with NewClient and call Connect to establish the session.
type Client struct {
	addr          string
	clientID      string
	serverTimeout time.Duration
	dialTimeout   time.Duration
	tlsConfig     *tls.Config
	capacity      int
	maxBody       int
}

// Option adjusts connection behavior.
type Option func(*Client)

// WithClientID sets the identification string sent to the server at
// connection startup. An empty id suppresses the identification query.
func WithClientID(id string) Option {
	return func(client *Client) { client.clientID = id }
}

// WithServerTimeout asks the server to use a non-default idle timeout for
// this connection.
func WithServerTimeout(timeout time.Duration) Option {
	return func(client *Client) { client.serverTimeout = timeout }
}

// WithDialTimeout bounds connection establishment.
func WithDialTimeout(timeout time.Duration) Option {
	return func(client *Client) { client.dialTimeout = timeout }
}

// WithTLS wraps the connection in TLS using the given configuration.
func WithTLS(config *tls.Config) Option {
	return func(client *Client) { client.tlsConfig = config }
}

// WithReadCapacity sets the initial read buffer size of pipelines created on
// the connection.
func WithReadCapacity(capacity int) Option {
	return func(client *Client) { client.capacity = capacity }
}

// WithMaxBodyLength sets the largest declared response body accepted before
// the framing is considered malformed.
func WithMaxBodyLength(limit int) Option {
	return func(client *Client) { client.maxBody = limit }
}

// NewClient initializes a connection builder for the given server address.
func NewClient(addr string, options ...Option) *Client {
	client := &Client{
		addr:     addr,
		clientID: DefaultClientID,
		capacity: DefaultCapacity,
		maxBody:  DefaultMaxBodyLength,
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Connect dials the server over TCP (optionally TLS) and performs the
// session handshake: multiple-command mode, client identification and the
// optional server-side timeout.
func (client *Client) Connect() (*Conn, error) {
	log.WithField("addr", client.addr).Info("connecting")
	var (
		transport net.Conn
		err       error
	)
	if client.dialTimeout > 0 {
		transport, err = net.DialTimeout("tcp", client.addr, client.dialTimeout)
	} else {
		transport, err = net.Dial("tcp", client.addr)
	}
	if err != nil {
		return nil, NewError(ConnectionError, "dial failed", err)
	}
	if tcpConn, ok := transport.(*net.TCPConn); ok {
		// Queries are small; waiting to coalesce them costs latency.
		_ = tcpConn.SetNoDelay(true)
	}
	if client.tlsConfig != nil {
		transport = tls.Client(transport, client.tlsConfig)
	}

	conn, err := newConn(client, transport)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	log.WithField("addr", client.addr).Info("connected")
	return conn, nil
}

// NewConn runs the session handshake over a caller-supplied transport, for
// connections established by other means (tunnels, tests, proxies). The
// transport is closed by Conn.Close if it implements io.Closer.
func NewConn(transport io.ReadWriter, options ...Option) (*Conn, error) {
	return newConn(NewClient("", options...), transport)
}

// Conn is an established session with an IRRd server. Queries run through
// pipelines created with Pipeline, or through the convenience helpers which
// each run a single query to completion.
type Conn struct {
	transport io.ReadWriter
	settings  *Client
	active    *Pipeline
}

func newConn(client *Client, transport io.ReadWriter) (*Conn, error) {
	conn := &Conn{transport: transport, settings: client}
	log.Debug("requesting multiple command mode")
	if _, err := io.WriteString(transport, "!!\n"); err != nil {
		return nil, NewError(ConnectionError, "handshake write failed", err)
	}

	pipeline, err := conn.Pipeline()
	if err != nil {
		return nil, err
	}
	if client.clientID != "" {
		if err := runSetup(pipeline, SetClientID(client.clientID)); err != nil {
			return nil, err
		}
	}
	if client.serverTimeout > 0 {
		if err := runSetup(pipeline, SetTimeout(client.serverTimeout)); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// runSetup executes a session setup query, tolerating registry-level
// refusals: only connection-fatal conditions abort the handshake.
func runSetup(pipeline *Pipeline, query Query) error {
	response, err := pipeline.Submit(query)
	if err != nil {
		return err
	}
	if _, err := response.Collect(); err != nil {
		if connectionFatal(err) {
			return err
		}
		log.WithFields(log.Fields{"query": query.cmd}).WithError(err).Warn("setup query refused")
	}
	return nil
}

// Pipeline creates a query pipeline on this connection. Only one pipeline
// may be live at a time: responses are matched to queries by order alone,
// so a second pipeline would race the first for frames. The previous
// pipeline must be fully drained (or failed) before a new one is created.
func (conn *Conn) Pipeline() (*Pipeline, error) {
	if conn.active != nil {
		outstanding, dirty, terminalErr := conn.active.state()
		switch {
		case terminalErr != nil:
			return nil, NewError(ClosedError, "connection failed", terminalErr)
		case dirty:
			// Closed with responses unread: frame positions on the wire
			// can no longer be matched to queries.
			return nil, NewError(ClosedError, "connection abandoned with unread responses")
		case outstanding > 0:
			return nil, NewError(PipelineActiveError, "previous pipeline still has outstanding responses")
		}
		_ = conn.active.Close()
	}
	conn.active = newPipeline(conn.transport, conn.settings.capacity, conn.settings.maxBody)
	return conn.active, nil
}

// Version asks the server for its version identification string.
func (conn *Conn) Version() (string, error) {
	records, err := conn.run(Version())
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", NewError(ServerError, "empty version response")
	}
	return records[0], nil
}

// ASSetMembers runs a single as-set membership query to completion.
func (conn *Conn) ASSetMembers(asSet string) ([]string, error) {
	return conn.run(ASSetMembers(asSet))
}

// IPv4Routes runs a single IPv4 route origin query to completion.
func (conn *Conn) IPv4Routes(autNum string) ([]string, error) {
	return conn.run(IPv4Routes(autNum))
}

// IPv6Routes runs a single IPv6 route origin query to completion.
func (conn *Conn) IPv6Routes(autNum string) ([]string, error) {
	return conn.run(IPv6Routes(autNum))
}

func (conn *Conn) run(query Query) ([]string, error) {
	pipeline, err := conn.Pipeline()
	if err != nil {
		return nil, err
	}
	response, err := pipeline.Submit(query)
	if err != nil {
		return nil, err
	}
	return response.Collect()
}

// Close ends the session: a best-effort quit command followed by closing
// the transport, if it is closable.
func (conn *Conn) Close() error {
	log.Info("closing connection")
	var errs *multierror.Error
	if _, err := io.WriteString(conn.transport, "!q\n"); err != nil {
		log.WithError(err).Warn("failed to send quit command")
		errs = multierror.Append(errs, err)
	}
	if closer, ok := conn.transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("failed to close transport")
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
