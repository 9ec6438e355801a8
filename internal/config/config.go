// Package config loads the credentials file and aggregates the CLI's flag
// groups into one Options value the rest of the program consumes, read
// once up front and threaded down to every other package.
package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/amaizfinance/redis-rebalance/internal/checks"
	"github.com/amaizfinance/redis-rebalance/internal/executor"
	"github.com/amaizfinance/redis-rebalance/internal/inventory"
)

// Mode selects host-as-group (Simple) or datacenter-aware grouping.
type Mode string

const (
	ModeSimple  Mode = "simple"
	ModeDCAware Mode = "dc-aware"
)

// Options aggregates every CLI flag group: connect, optional, monitoring,
// debug.
type Options struct {
	// connect
	Host     string
	Port     int
	Password string

	// optional
	PortReductionTarget      int
	Replicas                 int
	Skew                     float64
	GroupSkew                float64
	InterStepTimeout         time.Duration
	FixOnly                  bool
	Force                    bool
	AliveOnly                bool
	CredentialsFile          string
	Mode                     Mode
	AllowMastersWithoutSlots bool
	DatacentersFile          string

	// monitoring
	DryRun      bool
	NagiosShort bool

	// debug
	SaveSnapshot string
	LoadSnapshot string

	// supplemented (§9)
	List bool
}

// Validate enforces the cross-flag constraints: save-snapshot and
// load-snapshot are mutually exclusive, and the replica count must be
// non-negative.
func (o Options) Validate() error {
	if o.SaveSnapshot != "" && o.LoadSnapshot != "" {
		return fmt.Errorf("config: --save-snapshot and --load-snapshot are mutually exclusive")
	}
	if o.Replicas < 0 {
		return fmt.Errorf("config: replicas must be >= 0")
	}
	return nil
}

// CheckOptions narrows Options down to what internal/checks needs.
func (o Options) CheckOptions() checks.Options {
	return checks.Options{
		ReplicasPerMaster: o.Replicas,
		Skew:              o.Skew,
		GroupSkew:         o.GroupSkew,
		WaiveEmptyMasters: o.AllowMastersWithoutSlots,
	}
}

// ExecutorPolicy narrows Options down to what internal/executor needs.
func (o Options) ExecutorPolicy() executor.Policy {
	policy := executor.DefaultPolicy()
	if o.InterStepTimeout > 0 {
		policy.InterStepTimeout = o.InterStepTimeout
	}
	return policy
}

// LoadCredentials reads the `default.redis_password` key from an INI
// credentials file. A missing path is not an error here: the caller's
// CLI flag value (if any) is left as the fallback.
func LoadCredentials(path string) (password string, err error) {
	if path == "" {
		return "", nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("config: loading credentials file %s: %w", path, err)
	}
	return cfg.Section("default").Key("redis_password").String(), nil
}

// LoadDatacenters reads a "[datacenters]" INI section mapping each node IP
// to a "datacenter[/hostname]" value into inventory.Entry records keyed by
// IP. A missing path returns a nil map rather than an error, so the caller
// can treat "no file" the same as "no entries".
func LoadDatacenters(path string) (map[string]inventory.Entry, error) {
	if path == "" {
		return nil, nil
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: loading datacenters file %s: %w", path, err)
	}
	section := cfg.Section("datacenters")
	entries := make(map[string]inventory.Entry, len(section.Keys()))
	for _, key := range section.Keys() {
		dc, hostname := key.Value(), ""
		if idx := strings.IndexByte(dc, '/'); idx >= 0 {
			dc, hostname = dc[:idx], dc[idx+1:]
		}
		entries[key.Name()] = inventory.Entry{Datacenter: dc, Hostname: hostname}
	}
	return entries, nil
}

// ResolvePassword applies the override order: a credentials-file value is
// used unless the caller supplies an explicit CLI flag, which always
// wins.
func ResolvePassword(flagValue string, credentialsFile string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return LoadCredentials(credentialsFile)
}
