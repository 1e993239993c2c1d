package optimize

import "sigs.k8s.io/yaml"

// Config controls which rules run and how many fix-point passes the
// Optimizer allows before giving up, loaded from the host's YAML
// configuration file the way the teacher loads its own tunables.
type Config struct {
	// Rules lists the rule names to run, in the order listed within
	// each pass; nil means DefaultRules().
	Rules []string `json:"rules,omitempty"`
	// MaxPasses bounds the fix-point loop; exceeding it without
	// reaching a stable generation number is a configuration problem
	// (a rule cycling forever), not a normal outcome.
	MaxPasses int `json:"maxPasses,omitempty"`
	// Disabled lists rule names to skip even if present in Rules or
	// DefaultRules(), letting a deployment turn off one problematic
	// rule without hand-maintaining the rest of the list.
	Disabled []string `json:"disabled,omitempty"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() *Config {
	return &Config{MaxPasses: 100}
}

// ParseConfig decodes a YAML configuration document.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = 100
	}
	return cfg, nil
}

func (c *Config) isDisabled(name string) bool {
	for _, d := range c.Disabled {
		if d == name {
			return true
		}
	}
	return false
}
