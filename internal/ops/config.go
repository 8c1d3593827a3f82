package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"tradenode/internal/cache"
	"tradenode/internal/model"
	"tradenode/internal/risk"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Registry RegistryConfig     `json:"registry"`
	Risk     risk.Config        `json:"risk"`
	Store    *StoreConfig       `json:"store"`
	Features FeatureFlagsConfig `json:"features"`
}

// RegistryConfig defines venue and instrument mappings.
type RegistryConfig struct {
	Venues      []VenueConfig      `json:"venues"`
	Instruments []InstrumentConfig `json:"instruments"`
}

// VenueConfig describes a venue entry.
type VenueConfig struct {
	Name string `json:"name"`
}

// InstrumentConfig describes an instrument entry.
type InstrumentConfig struct {
	Symbol         string `json:"symbol"`
	Venue          string `json:"venue"`
	PricePrecision int32  `json:"pricePrecision"`
	SizePrecision  int32  `json:"sizePrecision"`
}

// StoreConfig defines the optional snapshot persistence target.
type StoreConfig struct {
	Host       string            `json:"host"`
	Port       int               `json:"port"`
	User       string            `json:"user"`
	Password   string            `json:"password"`
	Database   string            `json:"database"`
	SSLMode    string            `json:"sslMode"`
	Params     map[string]string `json:"params"`
	ConnString string            `json:"connString"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	EnableEmulator *bool `json:"enableEmulator"`
	EnableTWAP     *bool `json:"enableTwap"`
	EnableMetrics  *bool `json:"enableMetrics"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	EnableEmulator bool
	EnableTWAP     bool
	EnableMetrics  bool
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Registry *model.Registry
	Risk     risk.Config
	Store    *cache.StoreOption
	Features FeatureFlags
}

// Load reads a JSON config file and builds the registry.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	registry, err := buildRegistry(cfg.Registry)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{
		Registry: registry,
		Risk:     cfg.Risk,
		Features: resolveFeatures(cfg.Features),
	}
	if cfg.Store != nil {
		loaded.Store = &cache.StoreOption{
			Host:       cfg.Store.Host,
			Port:       cfg.Store.Port,
			User:       cfg.Store.User,
			Password:   cfg.Store.Password,
			Database:   cfg.Store.Database,
			SSLMode:    cfg.Store.SSLMode,
			Params:     cfg.Store.Params,
			ConnString: cfg.Store.ConnString,
		}
	}
	return loaded, nil
}

func buildRegistry(cfg RegistryConfig) (*model.Registry, error) {
	reg := model.NewRegistry()
	for _, venue := range cfg.Venues {
		if _, err := reg.AddVenue(venue.Name); err != nil {
			return nil, err
		}
	}
	for _, inst := range cfg.Instruments {
		venueID, ok := reg.VenueIDByName(inst.Venue)
		if !ok {
			return nil, fmt.Errorf("venue not found: %s", inst.Venue)
		}
		precision := model.Precision{Price: inst.PricePrecision, Size: inst.SizePrecision}
		if _, err := reg.AddInstrument(inst.Symbol, venueID, precision); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{
		EnableEmulator: true,
		EnableTWAP:     true,
		EnableMetrics:  true,
	}
	if cfg.EnableEmulator != nil {
		flags.EnableEmulator = *cfg.EnableEmulator
	}
	if cfg.EnableTWAP != nil {
		flags.EnableTWAP = *cfg.EnableTWAP
	}
	if cfg.EnableMetrics != nil {
		flags.EnableMetrics = *cfg.EnableMetrics
	}
	return flags
}
