// Package config loads and validates switch core configuration, grounded
// on pkg/node/config.go's load/default/save pattern, extended with a YAML
// loader for the tunables named in the switch configuration model.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the switch configuration model.
type Config struct {
	// LogLevel determines the verbosity of logging.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// MaxPacketSize bounds the largest packet buffer the core will allocate.
	MaxPacketSize int `json:"max_packet_size" yaml:"max_packet_size"`

	// MaxPorts bounds the size of the port registry.
	MaxPorts int `json:"max_ports" yaml:"max_ports"`

	// DefaultPortCount is the number of ports created at startup.
	DefaultPortCount int `json:"default_port_count" yaml:"default_port_count"`

	// MaxVlans bounds the number of VLAN entries the VLAN engine tracks.
	MaxVlans int `json:"max_vlans" yaml:"max_vlans"`

	// DefaultVlanID is the VLAN new ports are assigned to.
	DefaultVlanID int `json:"default_vlan_id" yaml:"default_vlan_id"`

	// MaxMacTableEntries bounds the MAC table's capacity.
	MaxMacTableEntries int `json:"max_mac_table_entries" yaml:"max_mac_table_entries"`

	// DefaultMacAgingTime is the aging timeout, in seconds, for dynamic
	// MAC table entries.
	DefaultMacAgingTime int `json:"default_mac_aging_time" yaml:"default_mac_aging_time"`

	// MaxRoutingEntries bounds the routing table's capacity.
	MaxRoutingEntries int `json:"max_routing_entries" yaml:"max_routing_entries"`

	// MaxArpEntries bounds the ARP cache's capacity.
	MaxArpEntries int `json:"max_arp_entries" yaml:"max_arp_entries"`

	// DefaultArpAgingTime is the aging timeout, in seconds, for ARP entries.
	DefaultArpAgingTime int `json:"default_arp_aging_time" yaml:"default_arp_aging_time"`

	// MaxMTU bounds the largest MTU a port may be configured with.
	MaxMTU int `json:"max_mtu" yaml:"max_mtu"`

	// DefaultMTU is the MTU assigned to a port at creation.
	DefaultMTU int `json:"default_mtu" yaml:"default_mtu"`

	// MaxIPFragments bounds the number of concurrent reassembly contexts.
	MaxIPFragments int `json:"max_ip_fragments" yaml:"max_ip_fragments"`

	// IPFragmentTimeout is the reassembly timeout, in seconds.
	IPFragmentTimeout int `json:"ip_fragment_timeout" yaml:"ip_fragment_timeout"`

	// Features toggles optional engine behavior by name (e.g. "stp", "arp").
	Features map[string]bool `json:"features" yaml:"features"`
}

// Default values for every tunable, matching the switch configuration
// model's defaults.
const (
	DefaultMaxPacketSize      = 9216
	DefaultMaxPorts           = 128
	DefaultPortCountValue     = 128
	DefaultMaxVlans           = 4094
	DefaultVlanIDValue        = 1
	DefaultMaxMacTableEntries = 65536
	DefaultMacAgingTimeValue  = 300
	DefaultMaxRoutingEntries  = 16384
	DefaultMaxArpEntries      = 8192
	DefaultArpAgingTimeValue  = 1200
	DefaultMaxMTUValue        = 9216
	DefaultMTUValue           = 1500
	DefaultMaxIPFragments     = 64
	DefaultIPFragmentTimeoutS = 30
)

// DefaultConfig returns a configuration populated with the switch
// simulator's defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:            "info",
		MaxPacketSize:       DefaultMaxPacketSize,
		MaxPorts:            DefaultMaxPorts,
		DefaultPortCount:    DefaultPortCountValue,
		MaxVlans:            DefaultMaxVlans,
		DefaultVlanID:       DefaultVlanIDValue,
		MaxMacTableEntries:  DefaultMaxMacTableEntries,
		DefaultMacAgingTime: DefaultMacAgingTimeValue,
		MaxRoutingEntries:   DefaultMaxRoutingEntries,
		MaxArpEntries:       DefaultMaxArpEntries,
		DefaultArpAgingTime: DefaultArpAgingTimeValue,
		MaxMTU:              DefaultMaxMTUValue,
		DefaultMTU:          DefaultMTUValue,
		MaxIPFragments:      DefaultMaxIPFragments,
		IPFragmentTimeout:   DefaultIPFragmentTimeoutS,
		Features:            map[string]bool{"stp": true, "arp": true},
	}
}

// LoadConfigJSON loads configuration from a JSON file. An empty path
// returns DefaultConfig().
func LoadConfigJSON(filePath string) (*Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, errors.New("config file not found")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigYAML loads configuration from a YAML file. An empty path
// returns DefaultConfig().
func LoadConfigYAML(filePath string) (*Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, errors.New("config file not found")
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to filePath as indented JSON.
func (c *Config) Save(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0644)
}

// Validate checks that every tunable falls within the bounds the switch
// core's engines assume.
func (c *Config) Validate() error {
	if c.MaxPacketSize <= 0 || c.MaxPacketSize > 9216 {
		return errors.New("max_packet_size must be in (0, 9216]")
	}
	if c.MaxPorts <= 0 {
		return errors.New("max_ports must be positive")
	}
	if c.DefaultPortCount < 0 || c.DefaultPortCount > c.MaxPorts {
		return errors.New("default_port_count must be in [0, max_ports]")
	}
	if c.MaxVlans <= 0 || c.MaxVlans > 4094 {
		return errors.New("max_vlans must be in (0, 4094]")
	}
	if c.DefaultVlanID < 1 || c.DefaultVlanID > c.MaxVlans {
		return errors.New("default_vlan_id must be in [1, max_vlans]")
	}
	if c.MaxMacTableEntries <= 0 {
		return errors.New("max_mac_table_entries must be positive")
	}
	if c.DefaultMacAgingTime <= 0 {
		return errors.New("default_mac_aging_time must be positive")
	}
	if c.MaxRoutingEntries <= 0 {
		return errors.New("max_routing_entries must be positive")
	}
	if c.MaxArpEntries <= 0 {
		return errors.New("max_arp_entries must be positive")
	}
	if c.DefaultArpAgingTime <= 0 {
		return errors.New("default_arp_aging_time must be positive")
	}
	if c.MaxMTU <= 0 {
		return errors.New("max_mtu must be positive")
	}
	if c.DefaultMTU <= 0 || c.DefaultMTU > c.MaxMTU {
		return errors.New("default_mtu must be in (0, max_mtu]")
	}
	if c.MaxIPFragments <= 0 {
		return errors.New("max_ip_fragments must be positive")
	}
	if c.IPFragmentTimeout <= 0 {
		return errors.New("ip_fragment_timeout must be positive")
	}
	return nil
}

// FeatureEnabled reports whether the named feature flag is set, defaulting
// to false when unset.
func (c *Config) FeatureEnabled(name string) bool {
	if c.Features == nil {
		return false
	}
	return c.Features[name]
}
