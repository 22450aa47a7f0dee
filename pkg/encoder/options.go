package encoder

import (
	"fmt"
	"sort"
	"strings"
)

// Options is the key/value bag passed to the codec when it is opened.
type Options map[string]string

// NewH264Options returns the default libx264 options.
func NewH264Options() Options {
	return Options{"preset": "medium"}
}

// NewH264RealtimeOptions returns libx264 options tuned for low latency.
func NewH264RealtimeOptions() Options {
	return Options{"preset": "medium", "tune": "zerolatency"}
}

// ParseOptions parses "key=value" pairs.
func ParseOptions(pairs []string) (Options, error) {
	o := Options{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: option %q is not key=value", ErrInvalidSettings, p)
		}
		o[k] = strings.TrimSpace(v)
	}
	return o, nil
}

// Clone returns an independent copy.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// Merge returns a copy of o overridden by other.
func (o Options) Merge(other Options) Options {
	c := o.Clone()
	for k, v := range other {
		c[k] = v
	}
	return c
}

// String renders the options sorted by key, e.g. "preset=medium tune=zerolatency".
func (o Options) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + o[k]
	}
	return strings.Join(parts, " ")
}
