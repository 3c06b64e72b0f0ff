package sham

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunable knobs a deployment of sham may want to override
// without recompiling, modeled on the layered yaml.v3 config the teacher
// loads in pkg/client/config.go. Zero-value Config is not ready for use;
// call DefaultConfig and override from there.
type Config struct {
	MSS            int     `yaml:"mss"`
	Window         int     `yaml:"window"`
	RTOMillis      int64   `yaml:"rtoMillis"`
	MaxRetries     int     `yaml:"maxRetries"`
	RecvBufferSize int     `yaml:"recvBufferSize"`
	LossRate       float64 `yaml:"lossRate"`
	VerboseLog     bool    `yaml:"verboseLog"`
}

// DefaultConfig returns the GLOSSARY-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MSS:            MSS,
		Window:         Window,
		RTOMillis:      RTOMillis,
		MaxRetries:     MaxRetries,
		RecvBufferSize: DefaultRecvBufferSize,
		LossRate:       0,
		VerboseLog:     os.Getenv("RUDP_LOG") == "1",
	}
}

// LoadConfig reads a YAML config file and merges it over DefaultConfig.
// A missing file is not an error; it simply yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
