package bfopt

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ToolConfig is what the cmd tools load from config.toml. Persistence is
// optional; a missing [persistence] table leaves it nil and nothing gets
// stored.
type ToolConfig struct {
	Machine     *MachineConfig     `toml:"machine"`
	Persistence *PersistenceConfig `toml:"persistence"`
}

func LoadToolConfig(path string) (*ToolConfig, error) {
	conffile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Unable to open tool config [%s]: %w", path, err)
	}
	defer conffile.Close()

	config := &ToolConfig{}
	if _, err := toml.NewDecoder(conffile).Decode(config); err != nil {
		return nil, fmt.Errorf("Failed to unmarshal tool config [%s]: %w", path, err)
	}

	if config.Machine == nil {
		config.Machine = &MachineConfig{}
	}

	return config, nil
}
