package irrd

import (
	"fmt"
	"strings"
	"time"
)

// Query is one protocol command, immutable once built. The zero value is not
// a valid query; use the constructors below or NewQuery for verbs this
// package does not model.
type Query struct {
	cmd        string
	expectData bool
	decoder    RecordDecoder
}

// NewQuery builds a custom query. cmd is the command text without the
// trailing delimiter; expectData declares whether the server answers with a
// data frame; decoder splits the body of a data response into records and
// defaults to WordDecoder.
func NewQuery(cmd string, expectData bool, decoder RecordDecoder) Query {
	if decoder == nil {
		decoder = WordDecoder
	}
	return Query{cmd: cmd, expectData: expectData, decoder: decoder}
}

// Cmd returns the command text sent to the server, without the delimiter.
func (query Query) Cmd() string {
	return query.cmd
}

// ExpectsData reports whether the server is expected to answer this query
// with a data frame.
func (query Query) ExpectsData() bool {
	return query.expectData
}

func (query Query) String() string {
	return query.cmd
}

// Version asks for the server's version identification string.
func Version() Query {
	return Query{cmd: "!v", expectData: true, decoder: WholeBodyDecoder}
}

// SetClientID identifies the client to the server. Usually issued through
// the WithClientID connection option rather than directly.
func SetClientID(id string) Query {
	return Query{cmd: "!n" + id}
}

// SetTimeout sets the server-side idle timeout of the connection. Usually
// issued through the WithServerTimeout connection option.
func SetTimeout(timeout time.Duration) Query {
	return Query{cmd: fmt.Sprintf("!t%d", int(timeout.Seconds()))}
}

// GetSources asks for the list of sources currently selected for query
// resolution.
func GetSources() Query {
	return Query{cmd: "!s-lc", expectData: true, decoder: WordDecoder}
}

// SetSources selects the sources used for subsequent query resolution.
func SetSources(sources ...string) Query {
	return Query{cmd: "!s" + strings.Join(sources, ",")}
}

// UnsetSources re-selects all sources available on the server.
func UnsetSources() Query {
	return Query{cmd: "!s-*"}
}

// ASSetMembers asks for the direct members of an as-set.
func ASSetMembers(asSet string) Query {
	return Query{cmd: "!i" + asSet, expectData: true, decoder: WordDecoder}
}

// ASSetMembersRecursive asks for the members of an as-set, recursively
// expanding member sets.
func ASSetMembersRecursive(asSet string) Query {
	return Query{cmd: "!i" + asSet + ",1", expectData: true, decoder: WordDecoder}
}

// RouteSetMembers asks for the direct members of a route-set.
func RouteSetMembers(routeSet string) Query {
	return Query{cmd: "!i" + routeSet, expectData: true, decoder: WordDecoder}
}

// RouteSetMembersRecursive asks for the members of a route-set, recursively
// expanding member sets.
func RouteSetMembersRecursive(routeSet string) Query {
	return Query{cmd: "!i" + routeSet + ",1", expectData: true, decoder: WordDecoder}
}

// IPv4Routes asks for the IPv4 prefixes of route objects whose origin is the
// given autonomous system.
func IPv4Routes(autNum string) Query {
	return Query{cmd: "!g" + autNum, expectData: true, decoder: WordDecoder}
}

// IPv6Routes asks for the IPv6 prefixes of route6 objects whose origin is
// the given autonomous system.
func IPv6Routes(autNum string) Query {
	return Query{cmd: "!6" + autNum, expectData: true, decoder: WordDecoder}
}

// RPSLObject asks for the RPSL object of the given class exactly matching
// key.
func RPSLObject(class RPSLObjectClass, key string) Query {
	return Query{
		cmd:        fmt.Sprintf("!m%s,%s", class, key),
		expectData: true,
		decoder:    ParagraphDecoder,
	}
}

// MntBy asks for all RPSL objects carrying the given maintainer in their
// mnt-by attribute.
func MntBy(mntner string) Query {
	return Query{cmd: "!o" + mntner, expectData: true, decoder: ParagraphDecoder}
}

// Origins asks for the unique origins of route or route6 objects exactly
// matching the given prefix.
func Origins(prefix string) Query {
	return Query{cmd: "!r" + prefix + ",o", expectData: true, decoder: WordDecoder}
}

// RoutesExact asks for the route or route6 objects exactly matching the
// given prefix.
func RoutesExact(prefix string) Query {
	return Query{cmd: "!r" + prefix, expectData: true, decoder: ParagraphDecoder}
}

// RoutesLess asks for the route or route6 objects one level less specific
// than the given prefix, excluding exact matches.
func RoutesLess(prefix string) Query {
	return Query{cmd: "!r" + prefix + ",l", expectData: true, decoder: ParagraphDecoder}
}

// RoutesLessEqual asks for the route or route6 objects one level less
// specific than the given prefix, including exact matches.
func RoutesLessEqual(prefix string) Query {
	return Query{cmd: "!r" + prefix + ",L", expectData: true, decoder: ParagraphDecoder}
}

// RoutesMore asks for the route or route6 objects one level more specific
// than the given prefix, excluding exact matches.
func RoutesMore(prefix string) Query {
	return Query{cmd: "!r" + prefix + ",M", expectData: true, decoder: ParagraphDecoder}
}

// RPSLObjectClass names an RPSL object class accepted by RPSLObject.
type RPSLObjectClass string

// RPSL object classes understood by IRRd.
const (
	ClassMntner     RPSLObjectClass = "mntner"
	ClassPerson     RPSLObjectClass = "person"
	ClassRole       RPSLObjectClass = "role"
	ClassRoute      RPSLObjectClass = "route"
	ClassRoute6     RPSLObjectClass = "route6"
	ClassAutNum     RPSLObjectClass = "aut-num"
	ClassInetRtr    RPSLObjectClass = "inet-rtr"
	ClassASSet      RPSLObjectClass = "as-set"
	ClassRouteSet   RPSLObjectClass = "route-set"
	ClassFilterSet  RPSLObjectClass = "filter-set"
	ClassRtrSet     RPSLObjectClass = "rtr-set"
	ClassPeeringSet RPSLObjectClass = "peering-set"
)
