package main

import (
	"bufio"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// handleConnection — per-connection reader loop.
//
// Commands arrive one per line. Responses use the IRRd status framing: data
// as "A<len>\n<body>\n", success "C\n", not found "D\n", not unique "E\n",
// errors "F <message>\n". Without an initial "!!" the connection answers a
// single query and closes, matching IRRd's single-command mode.
// ---------------------------------------------------------------------------

type session struct {
	srv      *server
	conn     net.Conn
	reader   *bufio.Reader
	writer   *bufio.Writer
	multiple bool
	sources  []string
	timeout  time.Duration
	clientID string
}

func (srv *server) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	if srv.logConn {
		log.Printf("fakeirrd: connected  %s  (total=%d active=%d)",
			remoteAddr, srv.connectionsAccepted.Load(), srv.connectionsCurrent.Load())
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(srv.nodelay)
	}

	sess := &session{
		srv:     srv,
		conn:    conn,
		reader:  bufio.NewReader(conn),
		writer:  bufio.NewWriter(conn),
		sources: append([]string(nil), srv.registry.Sources...),
		timeout: srv.idleTimeout,
	}
	defer func() {
		_ = conn.Close()
		srv.connectionsCurrent.Add(-1)
		if srv.logConn {
			log.Printf("fakeirrd: disconnected  %s", remoteAddr)
		}
	}()

	for {
		if sess.timeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(sess.timeout))
		}
		line, err := sess.reader.ReadString('\n')
		if err != nil {
			return
		}
		command := strings.TrimRight(line, "\r\n")

		switch {
		case command == "!!":
			sess.multiple = true
			continue
		case command == "!q":
			return
		}

		if srv.latency > 0 {
			time.Sleep(srv.latency)
		}
		if err := sess.dispatch(command); err != nil {
			log.Printf("fakeirrd: %s write failed: %v", remoteAddr, err)
			return
		}
		if !sess.multiple {
			return
		}
	}
}

func (sess *session) dispatch(command string) error {
	if len(command) < 2 || command[0] != '!' {
		return sess.writeErrorf("unrecognized command %q", command)
	}
	arg := command[2:]

	switch command[1] {
	case 'v':
		return sess.writeData("IRRd -- version " + sess.srv.version)
	case 'n':
		return sess.handleClientID(arg)
	case 't':
		return sess.handleTimeout(arg)
	case 's':
		return sess.handleSources(arg)
	case 'i':
		return sess.handleASSet(arg)
	case 'g':
		return sess.handleOriginRoutes(arg, false)
	case '6':
		return sess.handleOriginRoutes(arg, true)
	case 'm':
		return sess.handleObjectLookup(arg)
	case 'o':
		return sess.handleMaintainer(arg)
	case 'r':
		return sess.handleRouteSearch(arg)
	}
	return sess.writeErrorf("unrecognized command %q", command)
}

func (sess *session) handleClientID(arg string) error {
	if arg == "" {
		return sess.writeError("missing client identification")
	}
	sess.clientID = arg
	return sess.writeSuccess()
}

func (sess *session) handleTimeout(arg string) error {
	seconds, err := strconv.Atoi(arg)
	if err != nil || seconds < 5 || seconds > 3600 {
		return sess.writeError("timeout must be between 5 and 3600")
	}
	sess.timeout = time.Duration(seconds) * time.Second
	return sess.writeSuccess()
}

func (sess *session) handleSources(arg string) error {
	switch arg {
	case "-lc":
		return sess.writeData(strings.Join(sess.sources, ","))
	case "-*":
		sess.sources = append([]string(nil), sess.srv.registry.Sources...)
		return sess.writeSuccess()
	}
	selected := strings.Split(arg, ",")
	for _, source := range selected {
		if !sess.srv.registry.hasSource(source) {
			return sess.writeError("one or more selected sources are unavailable")
		}
	}
	sess.sources = selected
	return sess.writeSuccess()
}

func (sess *session) handleASSet(arg string) error {
	name, recursive := strings.CutSuffix(arg, ",1")
	members, ok := sess.srv.registry.asSetMembers(name, recursive)
	if !ok {
		return sess.writeNotFound()
	}
	return sess.writeData(strings.Join(members, " "))
}

func (sess *session) handleOriginRoutes(arg string, ipv6 bool) error {
	routes, ok := sess.srv.registry.originRoutes(arg, ipv6)
	if !ok {
		return sess.writeNotFound()
	}
	return sess.writeData(strings.Join(routes, " "))
}

func (sess *session) handleObjectLookup(arg string) error {
	class, key, found := strings.Cut(arg, ",")
	if !found || class == "" || key == "" {
		return sess.writeError("missing object class or key")
	}
	bodies := sess.srv.registry.objects(class, key)
	switch len(bodies) {
	case 0:
		return sess.writeNotFound()
	case 1:
		return sess.writeData(bodies[0])
	}
	return sess.writeNotUnique()
}

func (sess *session) handleMaintainer(arg string) error {
	bodies := sess.srv.registry.maintainedBy(arg)
	if len(bodies) == 0 {
		return sess.writeNotFound()
	}
	return sess.writeData(strings.Join(bodies, "\n\n"))
}

func (sess *session) handleRouteSearch(arg string) error {
	mode := searchExact
	if prefix, suffix, found := cutLastComma(arg); found {
		switch suffix {
		case "o":
			mode = searchOrigins
		case "l":
			mode = searchLess
		case "L":
			mode = searchLessEqual
		case "M":
			mode = searchMore
		default:
			return sess.writeErrorf("unrecognized search option %q", suffix)
		}
		arg = prefix
	}

	records, err := sess.srv.registry.searchRoutes(arg, mode)
	if err != nil {
		return sess.writeError(err.Error())
	}
	if len(records) == 0 {
		return sess.writeNotFound()
	}
	separator := "\n\n"
	if mode == searchOrigins {
		separator = " "
	}
	return sess.writeData(strings.Join(records, separator))
}

// cutLastComma splits off a search option suffix, leaving prefixes without
// one untouched.
func cutLastComma(arg string) (string, string, bool) {
	i := strings.LastIndexByte(arg, ',')
	if i < 0 {
		return arg, "", false
	}
	return arg[:i], arg[i+1:], true
}

// ---------------------------------------------------------------------------
// Response framing
// ---------------------------------------------------------------------------

func (sess *session) writeData(body string) error {
	if _, err := fmt.Fprintf(sess.writer, "A%d\n%s\n", len(body), body); err != nil {
		return err
	}
	return sess.writer.Flush()
}

func (sess *session) writeSuccess() error {
	return sess.writeStatus("C\n")
}

func (sess *session) writeNotFound() error {
	return sess.writeStatus("D\n")
}

func (sess *session) writeNotUnique() error {
	return sess.writeStatus("E\n")
}

func (sess *session) writeError(message string) error {
	return sess.writeStatus("F " + message + "\n")
}

func (sess *session) writeErrorf(format string, args ...interface{}) error {
	return sess.writeError(fmt.Sprintf(format, args...))
}

func (sess *session) writeStatus(status string) error {
	if _, err := sess.writer.WriteString(status); err != nil {
		return err
	}
	return sess.writer.Flush()
}
