package loaders

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

// ShaderModuleLoader reads compiled SPIR-V modules (.spv) as little-endian
// words.
type ShaderModuleLoader struct{}

func (sl *ShaderModuleLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	res, err := bytesToBytecode(buf)
	if err != nil {
		return nil, fmt.Errorf("shader module %s: %w", path, err)
	}

	return &metadata.Resource{
		Type:     metadata.ResourceTypeShaderModule,
		Name:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     res,
	}, nil
}

func (sl *ShaderModuleLoader) Unload(resource *metadata.Resource) error {
	resource.Data = nil
	return nil
}

func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) < 4 || len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid SPIR-V length %d", len(b))
	}
	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	if byteCode[0] != spirvMagic {
		return nil, fmt.Errorf("invalid SPIR-V magic 0x%08X", byteCode[0])
	}
	return byteCode, nil
}
