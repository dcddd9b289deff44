package ruleset

import (
	"embed"
	"io/fs"
	"sort"

	"github.com/dealerdesk/dealerdesk-tax/services"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/pkg/errors"
)

//go:embed data/*.yaml
var bundled embed.FS

// LoadBundled parses every jurisdiction record shipped with the engine.
// Files are read in name order so the load is deterministic.
func LoadBundled() ([]business.JurisdictionTaxRules, error) {
	return LoadFS(bundled, "data")
}

// LoadFS parses every .yaml jurisdiction record under dir in fsys.
func LoadFS(fsys fs.FS, dir string) ([]business.JurisdictionTaxRules, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, errors.Wrap(err, "reading rule pack directory")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	records := make([]business.JurisdictionTaxRules, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading rule pack %s", name)
		}
		record, err := Parse(data)
		if err != nil {
			return nil, errors.Wrapf(err, "rule pack %s", name)
		}
		records = append(records, record)
	}

	return records, nil
}

// BundledRegistry builds a validated registry from the bundled rule pack.
func BundledRegistry() (*services.RuleRegistry, error) {
	records, err := LoadBundled()
	if err != nil {
		return nil, err
	}
	return services.NewRuleRegistry(records)
}
