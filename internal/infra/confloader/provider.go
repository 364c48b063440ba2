package confloader

import (
	"errors"

	"github.com/knadh/koanf/maps"
)

var errReadBytesNotSupported = errors.New("confloader: map provider has no byte form")

// mapProvider feeds flag overrides to koanf. Keys are dotted paths and are
// unflattened into nested sections.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
