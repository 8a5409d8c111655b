// conf/utils.go config file location helpers
package conf

import (
	"os"
	"path/filepath"

	"github.com/tphakala/replayclip/internal/errors"
)

// appDirName is the per-user config directory name.
const appDirName = "replayclip"

// GetDefaultConfigPaths returns the searched config directories, the working
// directory first. The last entry is where a default config is created.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return nil, errors.New(errors.Join(err, herr)).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "get-config-dir").
				Build()
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return []string{".", filepath.Join(configDir, appDirName)}, nil
}

// FindConfigFile locates an existing config.yaml in the default paths.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found").
		Component("conf").
		Category(errors.CategoryFileIO).
		Context("operation", "find-config-file").
		Build()
}
