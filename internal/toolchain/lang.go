package toolchain

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

type languageConfig struct {
	Compiler string `json:"compiler"`
	Flags    string `json:"flags"`
}

// LoadDir reads <dir>/<language>/config.json files and returns them on top of
// the defaults.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read toolchains dir")
	}
	toolchains := DefaultToolchains()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		cfg, err := newLangConfigFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to load toolchain %s", entry.Name())
		}
		if cfg.Compiler == "" {
			return nil, errors.Errorf("toolchain %s: compiler is empty", entry.Name())
		}
		toolchains = append(toolchains, Toolchain{
			Language: entry.Name(),
			Compiler: cfg.Compiler,
			Flags:    cfg.Flags,
		})
	}
	return NewRegistry(toolchains...), nil
}

func newLangConfigFromFile(path string) (*languageConfig, error) {
	file, err := os.Open(filepath.Join(path, "config.json"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	cfg := new(languageConfig)
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
