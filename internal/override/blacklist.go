package override

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Blacklist lists instruments excluded from external-quote refresh because
// the provider is known to report bad figures for them. Blacklisted
// instruments are still updated through TTM computation.
type Blacklist struct {
	ids map[string]struct{}
}

type blacklistFile struct {
	Version     int      `yaml:"version"`
	Instruments []string `yaml:"instruments"`
}

// LoadBlacklist reads the blacklist file. A malformed file is a fatal
// configuration error; an empty path or absent file yields an empty
// blacklist.
func LoadBlacklist(path string) (*Blacklist, error) {
	if path == "" {
		return &Blacklist{ids: map[string]struct{}{}}, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Blacklist{ids: map[string]struct{}{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blacklist: %w", err)
	}

	var file blacklistFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse blacklist: %w", err)
	}

	ids := make(map[string]struct{}, len(file.Instruments))
	for i, id := range file.Instruments {
		if id == "" {
			return nil, fmt.Errorf("blacklist entry %d is empty", i)
		}
		ids[id] = struct{}{}
	}
	return &Blacklist{ids: ids}, nil
}

// Contains reports whether an instrument is excluded from external refresh.
func (b *Blacklist) Contains(instrumentID string) bool {
	if b == nil {
		return false
	}
	_, ok := b.ids[instrumentID]
	return ok
}

// Len reports the number of blacklisted instruments.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.ids)
}
