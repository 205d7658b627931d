package device

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// idFileName is the fixed name of the token file inside the user config
// directory; the token plays the role of a per-installation device id and
// stays stable across runs.
const idFileName = "device_id"

// Identity describes this installation to the device-presence directory.
type Identity struct {
	ID   string
	Name string
}

// Load returns the persisted device identity, creating and persisting a
// fresh random token on first use.
func Load(nameOverride string) (Identity, error) {
	id, err := loadOrCreateID()
	if err != nil {
		return Identity{}, err
	}

	name := nameOverride
	if name == "" {
		name = defaultName()
	}

	return Identity{ID: id, Name: name}, nil
}

func loadOrCreateID() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, idFileName)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	return id, nil
}

func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(base, "beamdrop"), nil
}

func defaultName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s (%s)", host, runtime.GOOS)
}
