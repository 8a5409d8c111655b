package buildinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const systemIDFile = ".system_id"

// LoadOrCreateSystemID reads the installation identifier stored in dir,
// creating a random one on first use.
func LoadOrCreateSystemID(dir string) (string, error) {
	path := filepath.Join(dir, systemIDFile)
	if data, err := os.ReadFile(path); err == nil {
		id := strings.TrimSpace(string(data))
		if _, perr := uuid.Parse(id); perr == nil {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading system ID: %w", err)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating system ID directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing system ID: %w", err)
	}
	return id, nil
}
