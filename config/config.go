// Package config loads the settings that size a bridge's queue and fiber
// pool: buffer depth, worker count, batch size, and the cooperative wait
// timeouts.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ModuleConfig sizes one host<->module bridge. Timeouts are Go duration
// strings ("100ms", "1s") in YAML, parsed and range-checked by Validate.
// Fibers is the number of worker goroutines that run tasks against the host,
// and they run concurrently: a host that is not safe for concurrent use
// needs Fibers set to 1.
type ModuleConfig struct {
	Buffer              int           `yaml:"buffer"`
	Fibers              int           `yaml:"fibers"`
	MaxBatch            int           `yaml:"max_batch"`
	CoioTimeout         string        `yaml:"coio_timeout"`
	FiberStandbyTimeout string        `yaml:"fiber_standby_timeout"`
	Runtime             RuntimeConfig `yaml:"runtime"`
}

// RuntimeKind names the asynchronous-side flavor, mirroring Tokio's
// current_thread and multi_thread runtimes. Validate checks it, but
// RunModule does not act on it: the module goroutine and anything it spawns
// are scheduled by the Go runtime the same way under either kind.
type RuntimeKind string

const (
	RuntimeCurrentThread RuntimeKind = "cur_thread"
	RuntimeMultiThread   RuntimeKind = "multi_thread"
)

// RuntimeConfig is a tagged union: Kind selects which of the remaining
// fields apply. ThreadCount is accepted only under RuntimeMultiThread and
// must be positive when set; nothing applies it, so GOMAXPROCS is left as
// it is either way.
type RuntimeConfig struct {
	Kind        RuntimeKind `yaml:"type"`
	ThreadCount *int        `yaml:"thread_count,omitempty"`
}

// Default returns the same baseline the original host process shipped
// with: a 128-slot queue, 16 fibers, batches of 16, a 100ms cooperative
// poll, and a 1s fiber standby timeout after which an idle worker re-checks
// for work.
func Default() ModuleConfig {
	return ModuleConfig{
		Buffer:              128,
		Fibers:              16,
		MaxBatch:            16,
		CoioTimeout:         "100ms",
		FiberStandbyTimeout: "1s",
		Runtime:             RuntimeConfig{Kind: RuntimeMultiThread},
	}
}

// Load reads a ModuleConfig from path, starting from Default() and letting
// the file override whichever fields it sets, then validates the result.
// Decoding is strict: a field present in the file that doesn't match a
// known ModuleConfig/RuntimeConfig key is an error rather than being
// silently dropped, so a typo'd or removed field never passes for a
// correctly-spelled one.
func Load(path string) (ModuleConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return ModuleConfig{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return ModuleConfig{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return ModuleConfig{}, fmt.Errorf("config: %s: %w", path, errs)
	}
	return cfg, nil
}

// ValidationErrors collects every field-level problem found by Validate, so
// a caller sees the whole list at once instead of one error at a time.
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	msg := "invalid config:"
	for _, f := range e {
		msg += "\n  - " + f
	}
	return msg
}

// Validate rejects out-of-range or nonsensical fields, returning every
// violation found rather than stopping at the first.
func (c ModuleConfig) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.Buffer <= 0 {
		errs = append(errs, "buffer must be positive")
	}
	if c.Fibers <= 0 {
		errs = append(errs, "fibers must be positive")
	}
	if c.MaxBatch <= 0 {
		errs = append(errs, "max_batch must be positive")
	}
	if c.MaxBatch > c.Buffer {
		errs = append(errs, "max_batch must not exceed buffer")
	}

	if d, err := time.ParseDuration(c.CoioTimeout); err != nil {
		errs = append(errs, fmt.Sprintf("coio_timeout: invalid duration: %v", err))
	} else if d <= 0 {
		errs = append(errs, "coio_timeout must be positive")
	}

	if d, err := time.ParseDuration(c.FiberStandbyTimeout); err != nil {
		errs = append(errs, fmt.Sprintf("fiber_standby_timeout: invalid duration: %v", err))
	} else if d <= 0 {
		errs = append(errs, "fiber_standby_timeout must be positive")
	}

	switch c.Runtime.Kind {
	case RuntimeCurrentThread:
		if c.Runtime.ThreadCount != nil {
			errs = append(errs, "thread_count is not valid for runtime.type=cur_thread")
		}
	case RuntimeMultiThread:
		if c.Runtime.ThreadCount != nil && *c.Runtime.ThreadCount <= 0 {
			errs = append(errs, "runtime.thread_count must be positive when set")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown runtime.type %q", c.Runtime.Kind))
	}

	return errs
}

// CoioTimeoutDuration parses CoioTimeout, panicking if called before
// Validate has confirmed the string is well-formed.
func (c ModuleConfig) CoioTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.CoioTimeout)
	if err != nil {
		panic(fmt.Sprintf("config: coio_timeout not validated: %v", err))
	}
	return d
}

// FiberStandbyTimeoutDuration parses FiberStandbyTimeout, panicking if
// called before Validate has confirmed the string is well-formed.
func (c ModuleConfig) FiberStandbyTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.FiberStandbyTimeout)
	if err != nil {
		panic(fmt.Sprintf("config: fiber_standby_timeout not validated: %v", err))
	}
	return d
}
