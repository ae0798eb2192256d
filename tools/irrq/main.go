// Package main implements irrq — a command line query tool for IRRd-style
// routing registry servers. It runs one or more queries of a single verb
// over a pipelined connection and prints the resulting records to stdout,
// one per line.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/irrdtools/irrd-client-go/irrd"
)

var (
	flagServer      = flag.StringP("server", "s", "rr.ntt.net:43", "server address (host:port)")
	flagConfig      = flag.StringP("config", "c", "", "TOML configuration file")
	flagClientID    = flag.String("client-id", "", "client identification sent at connection startup")
	flagSources     = flag.StringSlice("sources", nil, "restrict query resolution to these sources")
	flagTimeout     = flag.Duration("timeout", 0, "server-side idle timeout to request")
	flagDialTimeout = flag.Duration("dial-timeout", 0, "connection establishment timeout")
	flagVerbose     = flag.BoolP("verbose", "v", false, "enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, "irrq — query a routing registry server\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <verb> [key...]\n\n", filepath.Base(os.Args[0]))
	fmt.Fprintf(os.Stderr, "Verbs:\n")
	fmt.Fprintf(os.Stderr, "  version               server version identification\n")
	fmt.Fprintf(os.Stderr, "  sources               sources selected for query resolution\n")
	fmt.Fprintf(os.Stderr, "  members <set>...      direct members of as-sets or route-sets\n")
	fmt.Fprintf(os.Stderr, "  members-r <set>...    recursively expanded members\n")
	fmt.Fprintf(os.Stderr, "  routes4 <aut-num>...  IPv4 prefixes originated by aut-nums\n")
	fmt.Fprintf(os.Stderr, "  routes6 <aut-num>...  IPv6 prefixes originated by aut-nums\n")
	fmt.Fprintf(os.Stderr, "  object <class,key>... RPSL objects by class and key\n")
	fmt.Fprintf(os.Stderr, "  mnt-by <mntner>...    RPSL objects carrying a maintainer\n")
	fmt.Fprintf(os.Stderr, "  origins <prefix>...   origins of route objects exactly matching prefixes\n")
	fmt.Fprintf(os.Stderr, "  search <prefix>...    route objects exactly matching prefixes\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	log.SetLevel(log.WarnLevel)
	if *flagVerbose {
		log.SetLevel(log.DebugLevel)
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	settings, err := resolveSettings()
	if err != nil {
		log.Fatal(err)
	}
	queries, err := buildQueries(flag.Arg(0), flag.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}

	if err := run(settings, queries); err != nil {
		log.Fatal(err)
	}
}

// settings is the effective configuration after merging the config file and
// command line flags.
type settings struct {
	client  *irrd.Client
	sources []string
}

func resolveSettings() (*settings, error) {
	cfg := &config{}
	if *flagConfig != "" {
		loaded, err := loadConfig(*flagConfig)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	server := cfg.Server
	if flag.CommandLine.Changed("server") || server == "" {
		server = *flagServer
	}
	sources := cfg.Sources
	if flag.CommandLine.Changed("sources") {
		sources = *flagSources
	}

	var options []irrd.Option
	if *flagClientID != "" {
		options = append(options, irrd.WithClientID(*flagClientID))
	} else if cfg.ClientID != "" {
		options = append(options, irrd.WithClientID(cfg.ClientID))
	}
	if timeout := pick(*flagTimeout, cfg.ServerTimeout.Duration); timeout > 0 {
		options = append(options, irrd.WithServerTimeout(timeout))
	}
	if timeout := pick(*flagDialTimeout, cfg.DialTimeout.Duration); timeout > 0 {
		options = append(options, irrd.WithDialTimeout(timeout))
	}

	return &settings{client: irrd.NewClient(server, options...), sources: sources}, nil
}

func pick[T comparable](flagValue, configValue T) T {
	var zero T
	if flagValue != zero {
		return flagValue
	}
	return configValue
}

// buildQueries maps a verb and its keys to protocol queries.
func buildQueries(verb string, keys []string) ([]irrd.Query, error) {
	var build func(key string) irrd.Query
	needsKeys := true

	switch verb {
	case "version":
		needsKeys = false
		build = func(string) irrd.Query { return irrd.Version() }
	case "sources":
		needsKeys = false
		build = func(string) irrd.Query { return irrd.GetSources() }
	case "members":
		build = irrd.ASSetMembers
	case "members-r":
		build = irrd.ASSetMembersRecursive
	case "routes4":
		build = irrd.IPv4Routes
	case "routes6":
		build = irrd.IPv6Routes
	case "object":
		build = func(key string) irrd.Query {
			class, objectKey, _ := cut(key)
			return irrd.RPSLObject(irrd.RPSLObjectClass(class), objectKey)
		}
		for _, key := range keys {
			if _, _, ok := cut(key); !ok {
				return nil, fmt.Errorf("object key %q must be of the form class,key", key)
			}
		}
	case "mnt-by":
		build = irrd.MntBy
	case "origins":
		build = irrd.Origins
	case "search":
		build = irrd.RoutesExact
	default:
		return nil, fmt.Errorf("unknown verb %q", verb)
	}

	if !needsKeys {
		if len(keys) != 0 {
			return nil, fmt.Errorf("verb %q takes no keys", verb)
		}
		return []irrd.Query{build("")}, nil
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("verb %q needs at least one key", verb)
	}
	queries := make([]irrd.Query, 0, len(keys))
	for _, key := range keys {
		queries = append(queries, build(key))
	}
	return queries, nil
}

func cut(key string) (string, string, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ',' {
			return key[:i], key[i+1:], key[:i] != "" && key[i+1:] != ""
		}
	}
	return key, "", false
}

func run(settings *settings, queries []irrd.Query) error {
	conn, err := settings.client.Connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.WithError(err).Warn("closing connection")
		}
	}()

	pipeline, err := conn.Pipeline()
	if err != nil {
		return err
	}
	if len(settings.sources) > 0 {
		response, err := pipeline.Submit(irrd.SetSources(settings.sources...))
		if err != nil {
			return err
		}
		if _, err := response.Collect(); err != nil {
			return fmt.Errorf("selecting sources: %w", err)
		}
	}

	for _, query := range queries {
		if _, err := pipeline.Submit(query); err != nil {
			return err
		}
	}
	return pipeline.Each(func(query irrd.Query, record string) error {
		_, err := fmt.Println(record)
		return err
	})
}
