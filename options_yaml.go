package active

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// optionsDoc is the YAML shape for a policy bag. Type-keyed registries are
// inherently programmatic and have no file form.
type optionsDoc struct {
	DisposeConstructedObjects  bool  `yaml:"disposeConstructedObjects"`
	DisposeStaticMethodResults bool  `yaml:"disposeStaticMethodResults"`
	PreferAsyncDisposal        bool  `yaml:"preferAsyncDisposal"`
	BlockOnAsyncDisposal       bool  `yaml:"blockOnAsyncDisposal"`
	ListenForListChanges       *bool `yaml:"listenForListChanges"`
	ListenForMapChanges        *bool `yaml:"listenForMapChanges"`
}

// OptionsFromYAML loads a policy bag from YAML. Omitted listen flags keep
// their enabled defaults.
func OptionsFromYAML(data []byte) (*Options, error) {
	var doc optionsDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing options: %w", err)
	}

	o := NewOptions()
	_ = o.SetDisposeConstructedObjects(doc.DisposeConstructedObjects)
	_ = o.SetDisposeStaticMethodResults(doc.DisposeStaticMethodResults)
	_ = o.SetPreferAsyncDisposal(doc.PreferAsyncDisposal)
	_ = o.SetBlockOnAsyncDisposal(doc.BlockOnAsyncDisposal)
	if doc.ListenForListChanges != nil {
		_ = o.SetListenForListChanges(*doc.ListenForListChanges)
	}
	if doc.ListenForMapChanges != nil {
		_ = o.SetListenForMapChanges(*doc.ListenForMapChanges)
	}
	return o, nil
}
