package main

import (
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// registry — the canned routing registry the responder answers from.
//
// The data model mirrors what the query verbs can reach: as-set membership,
// route origins per aut-num, and RPSL objects (route objects get dedicated
// fields so prefix searches can be answered without parsing bodies).
// ---------------------------------------------------------------------------

type registry struct {
	Sources []string     `toml:"sources"`
	ASSets  []asSetDef   `toml:"as-set"`
	Origins []originDef  `toml:"origin"`
	Objects []rpslObject `toml:"object"`
	Routes  []routeDef   `toml:"route"`
}

type asSetDef struct {
	Name    string   `toml:"name"`
	Members []string `toml:"members"`
}

type originDef struct {
	AutNum  string   `toml:"aut-num"`
	Routes  []string `toml:"routes"`
	Routes6 []string `toml:"routes6"`
}

type rpslObject struct {
	Class string `toml:"class"`
	Key   string `toml:"key"`
	MntBy string `toml:"mnt-by"`
	Body  string `toml:"body"`
}

type routeDef struct {
	Prefix string `toml:"prefix"`
	Origin string `toml:"origin"`
	Source string `toml:"source"`
}

func loadRegistry(path string) (*registry, error) {
	reg := &registry{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(raw, reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(reg.Sources) == 0 {
		return nil, fmt.Errorf("%s: registry declares no sources", path)
	}
	return reg, nil
}

// defaultRegistry provides a small self-consistent data set so the responder
// is useful without a registry file. AS64496-AS64511 and the 192.0.2.0/24,
// 198.51.100.0/24, 203.0.113.0/24 and 2001:db8::/32 blocks are reserved for
// documentation, so the canned answers never collide with real routing data.
func defaultRegistry() *registry {
	return &registry{
		Sources: []string{"FAKE", "FAKE-NONAUTH"},
		ASSets: []asSetDef{
			{Name: "AS-DEMO", Members: []string{"AS64496", "AS64497", "AS-DEMOCUST"}},
			{Name: "AS-DEMOCUST", Members: []string{"AS64498"}},
		},
		Origins: []originDef{
			{AutNum: "AS64496", Routes: []string{"192.0.2.0/24"}, Routes6: []string{"2001:db8::/32"}},
			{AutNum: "AS64497", Routes: []string{"198.51.100.0/24", "198.51.100.128/25"}},
			{AutNum: "AS64498", Routes: []string{"203.0.113.0/24"}},
		},
		Objects: []rpslObject{
			{
				Class: "aut-num", Key: "AS64496", MntBy: "DEMO-MNT",
				Body: "aut-num:        AS64496\nas-name:        DEMO-AS\nmnt-by:         DEMO-MNT\nsource:         FAKE",
			},
			{
				Class: "as-set", Key: "AS-DEMO", MntBy: "DEMO-MNT",
				Body: "as-set:         AS-DEMO\nmembers:        AS64496, AS64497, AS-DEMOCUST\nmnt-by:         DEMO-MNT\nsource:         FAKE",
			},
			{
				Class: "mntner", Key: "DEMO-MNT", MntBy: "DEMO-MNT",
				Body: "mntner:         DEMO-MNT\nadmin-c:        DEMO-ADM\nsource:         FAKE",
			},
			// Present in both sources: a unique lookup for this key answers
			// with the not-unique outcome.
			{
				Class: "person", Key: "DEMO-ADM", MntBy: "DEMO-MNT",
				Body: "person:         Demo Admin\nnic-hdl:        DEMO-ADM\nsource:         FAKE",
			},
			{
				Class: "person", Key: "DEMO-ADM", MntBy: "DEMO-MNT",
				Body: "person:         Demo Admin\nnic-hdl:        DEMO-ADM\nsource:         FAKE-NONAUTH",
			},
		},
		Routes: []routeDef{
			{Prefix: "192.0.2.0/24", Origin: "AS64496", Source: "FAKE"},
			{Prefix: "198.51.100.0/24", Origin: "AS64497", Source: "FAKE"},
			{Prefix: "198.51.100.128/25", Origin: "AS64497", Source: "FAKE"},
			{Prefix: "198.51.100.0/24", Origin: "AS64511", Source: "FAKE-NONAUTH"},
		},
	}
}

func (reg *registry) hasSource(name string) bool {
	for _, source := range reg.Sources {
		if strings.EqualFold(source, name) {
			return true
		}
	}
	return false
}

// asSetMembers resolves an as-set, optionally expanding member sets
// recursively. The second return is false when the set is unknown.
func (reg *registry) asSetMembers(name string, recursive bool) ([]string, bool) {
	def := reg.findASSet(name)
	if def == nil {
		return nil, false
	}
	if !recursive {
		return append([]string(nil), def.Members...), true
	}

	seen := map[string]bool{strings.ToUpper(name): true}
	var members []string
	queue := append([]string(nil), def.Members...)
	for len(queue) > 0 {
		member := queue[0]
		queue = queue[1:]
		upper := strings.ToUpper(member)
		if seen[upper] {
			continue
		}
		seen[upper] = true
		if nested := reg.findASSet(member); nested != nil {
			queue = append(queue, nested.Members...)
			continue
		}
		members = append(members, member)
	}
	sort.Strings(members)
	return members, true
}

func (reg *registry) findASSet(name string) *asSetDef {
	for i := range reg.ASSets {
		if strings.EqualFold(reg.ASSets[i].Name, name) {
			return &reg.ASSets[i]
		}
	}
	return nil
}

// originRoutes returns the IPv4 or IPv6 prefixes originated by an aut-num.
func (reg *registry) originRoutes(autNum string, ipv6 bool) ([]string, bool) {
	for i := range reg.Origins {
		if strings.EqualFold(reg.Origins[i].AutNum, autNum) {
			if ipv6 {
				return reg.Origins[i].Routes6, true
			}
			return reg.Origins[i].Routes, true
		}
	}
	return nil, false
}

// objects returns the bodies of every object of a class with the given key.
func (reg *registry) objects(class, key string) []string {
	var bodies []string
	for i := range reg.Objects {
		if strings.EqualFold(reg.Objects[i].Class, class) && strings.EqualFold(reg.Objects[i].Key, key) {
			bodies = append(bodies, reg.Objects[i].Body)
		}
	}
	return bodies
}

// maintainedBy returns the bodies of every object carrying the maintainer.
func (reg *registry) maintainedBy(mntner string) []string {
	var bodies []string
	for i := range reg.Objects {
		if strings.EqualFold(reg.Objects[i].MntBy, mntner) {
			bodies = append(bodies, reg.Objects[i].Body)
		}
	}
	return bodies
}

// Prefix search modes of the route lookup verb.
const (
	searchExact = iota
	searchOrigins
	searchLess
	searchLessEqual
	searchMore
)

// searchRoutes answers a prefix search. Origin mode returns AS numbers, every
// other mode returns route object bodies rendered from the route table.
func (reg *registry) searchRoutes(prefix string, mode int) ([]string, error) {
	wanted, err := netip.ParsePrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("invalid prefix %q", prefix)
	}

	var matches []routeDef
	for _, route := range reg.Routes {
		candidate, err := netip.ParsePrefix(route.Prefix)
		if err != nil || candidate.Addr().Is6() != wanted.Addr().Is6() {
			continue
		}
		switch mode {
		case searchExact, searchOrigins:
			if candidate == wanted {
				matches = append(matches, route)
			}
		case searchLess:
			if candidate != wanted && candidate.Contains(wanted.Addr()) && candidate.Bits() < wanted.Bits() {
				matches = append(matches, route)
			}
		case searchLessEqual:
			if candidate.Contains(wanted.Addr()) && candidate.Bits() <= wanted.Bits() {
				matches = append(matches, route)
			}
		case searchMore:
			if wanted.Contains(candidate.Addr()) && candidate.Bits() > wanted.Bits() {
				matches = append(matches, route)
			}
		}
	}

	if mode == searchOrigins {
		seen := map[string]bool{}
		var origins []string
		for _, route := range matches {
			if !seen[route.Origin] {
				seen[route.Origin] = true
				origins = append(origins, route.Origin)
			}
		}
		return origins, nil
	}

	var bodies []string
	for _, route := range matches {
		bodies = append(bodies, fmt.Sprintf(
			"route:          %s\norigin:         %s\nsource:         %s",
			route.Prefix, route.Origin, route.Source))
	}
	return bodies, nil
}
