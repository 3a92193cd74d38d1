// Package registry holds the static catalog of known block builders and their
// declared market share.
package registry

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies which client implementation talks to a builder.
type Kind string

const (
	// KindTitan is the Titan builder.
	KindTitan Kind = "titan"
	// KindBuilderNet is the Flashbots BuilderNet endpoint.
	KindBuilderNet Kind = "buildernet"
	// KindQuasar is the Quasar builder.
	KindQuasar Kind = "quasar"
	// KindRsync is the rsync builder.
	KindRsync Kind = "rsync"
	// KindGeneric is any builder speaking plain eth_sendBundle.
	KindGeneric Kind = "generic"
)

var knownKinds = map[Kind]struct{}{
	KindTitan:      {},
	KindBuilderNet: {},
	KindQuasar:     {},
	KindRsync:      {},
	KindGeneric:    {},
}

// ErrUnknownBuilderKind is returned for kinds without a client implementation.
var ErrUnknownBuilderKind = errors.New("unknown builder kind")

// ParseKind converts a config string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownKinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBuilderKind, s)
	}

	return k, nil
}

// Builder is one catalog entry. Entries are never mutated after the registry
// is built.
type Builder struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	Endpoint    string   `json:"endpoint"`
	HealthURL   string   `json:"health_url,omitempty"`
	MarketShare float64  `json:"market_share"`
	Active      bool     `json:"active"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Registry is an immutable, ordered catalog of builders.
type Registry struct {
	builders []Builder
	byName   map[string]int
}

// New validates the catalog and returns a registry preserving declaration order.
func New(builders []Builder) (*Registry, error) {
	r := &Registry{
		builders: make([]Builder, 0, len(builders)),
		byName:   make(map[string]int, len(builders)),
	}

	for i, b := range builders {
		if b.Name == "" {
			return nil, fmt.Errorf("builder %d: name is required", i)
		}

		if _, dup := r.byName[strings.ToLower(b.Name)]; dup {
			return nil, fmt.Errorf("builder %s: duplicate name", b.Name)
		}

		if _, ok := knownKinds[b.Kind]; !ok {
			return nil, fmt.Errorf("builder %s: %w: %q", b.Name, ErrUnknownBuilderKind, b.Kind)
		}

		if b.MarketShare < 0 || b.MarketShare > 1 {
			return nil, fmt.Errorf("builder %s: market share %v out of range [0,1]", b.Name, b.MarketShare)
		}

		u, err := url.Parse(b.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("builder %s: invalid endpoint %q", b.Name, b.Endpoint)
		}

		entry := b
		entry.Aliases = append([]string(nil), b.Aliases...)

		r.byName[strings.ToLower(b.Name)] = len(r.builders)
		r.builders = append(r.builders, entry)
	}

	return r, nil
}

// All returns the full catalog in declaration order.
func (r *Registry) All() []Builder {
	out := make([]Builder, len(r.builders))
	copy(out, r.builders)

	return out
}

// Active returns the entries flagged active, in declaration order.
func (r *Registry) Active() []Builder {
	out := make([]Builder, 0, len(r.builders))

	for _, b := range r.builders {
		if b.Active {
			out = append(out, b)
		}
	}

	return out
}

// Get looks up a builder by name (case-insensitive).
func (r *Registry) Get(name string) (Builder, bool) {
	idx, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return Builder{}, false
	}

	return r.builders[idx], true
}

// Len returns the number of catalog entries.
func (r *Registry) Len() int {
	return len(r.builders)
}

// WithShares returns a new registry where builders named in shares carry the
// given market share. Builders not in the map keep their declared share.
func (r *Registry) WithShares(shares map[string]float64) (*Registry, error) {
	updated := r.All()

	for i := range updated {
		if share, ok := shares[updated[i].Name]; ok {
			updated[i].MarketShare = share
		}
	}

	return New(updated)
}
