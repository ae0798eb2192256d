// Package main implements fakeirrd — a deterministic IRRd-protocol TCP
// responder for integration testing of routing registry clients. It answers
// the query verbs of IRRd's whois port (version, client identification,
// source selection, as-set expansion, route origin lookups, RPSL object
// retrieval and prefix searches) from a canned in-memory registry, loadable
// from a TOML file.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// ---------------------------------------------------------------------------
// CLI flags
// ---------------------------------------------------------------------------

var (
	flagAddr     = flag.String("addr", "127.0.0.1:43000", "listen address")
	flagVersion  = flag.String("version", "4.4.2", "IRRd version echoed by the version query")
	flagRegistry = flag.String("registry", "", "TOML registry data file (empty uses the built-in data set)")
	flagTimeout  = flag.Duration("timeout", 0, "initial per-connection idle timeout (0 disables; clients adjust it per session)")
	flagLatency  = flag.Duration("latency", 0, "artificial per-response latency")
	flagLogConn  = flag.Bool("log-conn", true, "log connect/disconnect events")
	flagNoDelay  = flag.Bool("nodelay", true, "set TCP_NODELAY")
)

// ---------------------------------------------------------------------------
// server
// ---------------------------------------------------------------------------

type server struct {
	registry    *registry
	version     string
	idleTimeout time.Duration
	latency     time.Duration
	logConn     bool
	nodelay     bool

	connectionsAccepted atomic.Uint64
	connectionsCurrent  atomic.Int64
}

func main() {
	flag.Parse()

	reg := defaultRegistry()
	if *flagRegistry != "" {
		loaded, err := loadRegistry(*flagRegistry)
		if err != nil {
			log.Fatalf("fakeirrd: %v", err)
		}
		reg = loaded
	}

	srv := &server{
		registry:    reg,
		version:     *flagVersion,
		idleTimeout: *flagTimeout,
		latency:     *flagLatency,
		logConn:     *flagLogConn,
		nodelay:     *flagNoDelay,
	}

	listener, err := net.Listen("tcp", *flagAddr)
	if err != nil {
		log.Fatalf("fakeirrd: listen %s failed: %v", *flagAddr, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("fakeirrd: received %v, shutting down", sig)
		_ = listener.Close()
	}()

	log.Printf("fakeirrd %s listening on %s  (sources=%s registry=%q timeout=%v latency=%v)",
		srv.version, *flagAddr, strings.Join(reg.Sources, ","), *flagRegistry, srv.idleTimeout, srv.latency)

	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			if strings.Contains(acceptErr.Error(), "use of closed network connection") {
				log.Printf("fakeirrd: listener closed, exiting")
				return
			}
			log.Printf("fakeirrd: accept: %v", acceptErr)
			continue
		}
		srv.connectionsAccepted.Add(1)
		srv.connectionsCurrent.Add(1)
		go srv.handleConnection(conn)
	}
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(os.Stderr)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fakeirrd — deterministic IRRd-protocol TCP responder for client testing\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
}
