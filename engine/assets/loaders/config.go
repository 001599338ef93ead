package loaders

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// ConfigLoader decodes a TOML file into the struct pointed to by params.
// Keys the struct does not declare are reported as errors.
type ConfigLoader struct{}

func (cl *ConfigLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	if params == nil {
		return nil, fmt.Errorf("config loader needs a destination for %s", path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(params); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("invalid config %s:\n%s", path, strict.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("invalid config %s at line %d, column %d: %w", path, row, col, err)
		}
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeConfig,
		Name:     info.Name(),
		FullPath: path,
		DataSize: uint64(info.Size()),
		Data:     params,
	}, nil
}

func (cl *ConfigLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	return nil
}
