package billing

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// tariffFile is the on-disk layout:
//
//	name = "domestic"
//	[[tier]]
//	capacity_kwh = 200
//	rate_per_kwh = 0.218
//	...
//	[[tier]]
//	unbounded = true
//	rate_per_kwh = 0.571
type tariffFile struct {
	Name  string `toml:"name"`
	Tiers []Tier `toml:"tier"`
}

// LoadRateTable reads a TOML tariff. An empty path selects ReferenceTable.
// Decoding and validation failures both wrap ErrInvalidRateTable.
func LoadRateTable(path string) (RateTable, string, error) {
	if path == "" {
		return ReferenceTable(), "reference", nil
	}
	var f tariffFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return RateTable{}, "", fmt.Errorf("%w: read %s: %v", ErrInvalidRateTable, path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return RateTable{}, "", fmt.Errorf("%w: unknown keys in %s: %v", ErrInvalidRateTable, path, undec)
	}
	t, err := NewRateTable(f.Tiers)
	if err != nil {
		return RateTable{}, "", fmt.Errorf("%s: %w", path, err)
	}
	name := f.Name
	if name == "" {
		name = path
	}
	return t, name, nil
}
