package engine

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// ApplicationConfig mirrors the TOML configuration file. Every key is
// optional; missing keys keep the values of DefaultApplicationConfig.
type ApplicationConfig struct {
	Application ApplicationSection `toml:"application"`
	Kernel      KernelConfig       `toml:"kernel"`
	Target      TargetConfig       `toml:"target"`
	Assets      AssetsConfig       `toml:"assets"`
	Output      OutputConfig       `toml:"output"`
}

type ApplicationSection struct {
	// The application name used in windowing and logs.
	Name     string `toml:"name"`
	LogLevel string `toml:"log_level"`
	// Number of job system workers, 0 means one per CPU.
	Workers int `toml:"workers"`
	// Open the preview window.
	Preview bool `toml:"preview"`
	// Re-render whenever an asset changes.
	Watch bool `toml:"watch"`
	// Frames per second of the preview loop.
	FrameRate int `toml:"frame_rate"`
}

type KernelConfig struct {
	NumChannels     uint32 `toml:"num_channels"`
	ChannelRangeMax uint32 `toml:"channel_range_max"`
	// "width" or "height"
	FlattenOrder string `toml:"flatten_order"`
	// "first" or "all"
	Normalization string `toml:"normalization"`
}

type TargetConfig struct {
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type AssetsConfig struct {
	Dir string `toml:"dir"`
	// Lua scene relative to Dir. Empty uses the scene of the game.
	Scene string `toml:"scene"`
	// Images to ingest relative to Dir. Empty ingests every image.
	Images             []string `toml:"images"`
	MaxConcurrentLoads int      `toml:"max_concurrent_loads"`
	SceneTimeoutMS     int      `toml:"scene_timeout_ms"`
	FlipY              bool     `toml:"flip_y"`
	Keep16Bit          bool     `toml:"keep_16bit"`
}

type OutputConfig struct {
	// PNG destination of SaveFrame, "-" is stdout.
	Path      string `toml:"path"`
	ShaderDir string `toml:"shader_dir"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Application: ApplicationSection{
			Name:      "Lumen",
			LogLevel:  "info",
			Workers:   runtime.NumCPU(),
			FrameRate: 30,
		},
		Kernel: KernelConfig{
			NumChannels:     metadata.DEFAULT_NUM_CHANNELS,
			ChannelRangeMax: metadata.DEFAULT_CHANNEL_RANGE_MAX,
			FlattenOrder:    metadata.FlattenByWidth.String(),
			Normalization:   metadata.NormalizeFirstOnly.String(),
		},
		Target: TargetConfig{
			Width:  640,
			Height: 360,
		},
		Assets: AssetsConfig{
			Dir:                "assets",
			MaxConcurrentLoads: 4,
			SceneTimeoutMS:     1000,
		},
		Output: OutputConfig{
			Path:      "frame.png",
			ShaderDir: "build/shaders",
		},
	}
}

// LoadApplicationConfig reads path on top of the defaults and validates the
// result.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	config := DefaultApplicationConfig()
	loader := &loaders.ConfigLoader{}
	if _, err := loader.Load(path, metadata.ResourceTypeConfig, config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate reports every invalid value at once.
func (c *ApplicationConfig) Validate() error {
	var errs []error
	if _, err := core.ParseLogLevel(c.Application.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Application.Workers < 0 {
		errs = append(errs, fmt.Errorf("application.workers must not be negative, got %d", c.Application.Workers))
	}
	if c.Application.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("application.frame_rate must be positive, got %d", c.Application.FrameRate))
	}
	if _, err := c.Kernel.ChannelLayout(); err != nil {
		errs = append(errs, fmt.Errorf("kernel: %w", err))
	}
	if _, err := metadata.ParseFlattenOrder(c.Kernel.FlattenOrder); err != nil {
		errs = append(errs, fmt.Errorf("kernel.flatten_order: %w", err))
	}
	if _, err := metadata.ParseChannelNormalization(c.Kernel.Normalization); err != nil {
		errs = append(errs, fmt.Errorf("kernel.normalization: %w", err))
	}
	if c.Target.Width == 0 || c.Target.Height == 0 ||
		c.Target.Width > loaders.MAX_IMAGE_WIDTH || c.Target.Height > loaders.MAX_IMAGE_HEIGHT {
		errs = append(errs, fmt.Errorf("target: %w: got %dx%d", core.ErrInvalidExtent, c.Target.Width, c.Target.Height))
	}
	if c.Assets.Dir == "" {
		errs = append(errs, errors.New("assets.dir must be set"))
	}
	if c.Assets.MaxConcurrentLoads <= 0 {
		errs = append(errs, fmt.Errorf("assets.max_concurrent_loads must be positive, got %d", c.Assets.MaxConcurrentLoads))
	}
	if c.Assets.SceneTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("assets.scene_timeout_ms must not be negative, got %d", c.Assets.SceneTimeoutMS))
	}
	return errors.Join(errs...)
}

// ChannelLayout builds the layout the exported kernel is specialised for.
func (k KernelConfig) ChannelLayout() (metadata.ChannelLayout, error) {
	return metadata.NewChannelLayout(k.NumChannels, k.ChannelRangeMax)
}

func (c *ApplicationConfig) flattenOrder() metadata.FlattenOrder {
	order, _ := metadata.ParseFlattenOrder(c.Kernel.FlattenOrder)
	return order
}

func (c *ApplicationConfig) normalization() metadata.ChannelNormalization {
	n, _ := metadata.ParseChannelNormalization(c.Kernel.Normalization)
	return n
}

func (c *ApplicationConfig) logLevel() core.LogLevel {
	level, _ := core.ParseLogLevel(c.Application.LogLevel)
	return level
}

func (c *ApplicationConfig) sceneTimeout() time.Duration {
	return time.Duration(c.Assets.SceneTimeoutMS) * time.Millisecond
}

func (c *ApplicationConfig) extent() metadata.Extent {
	return metadata.Extent{Width: int16(c.Target.Width), Height: int16(c.Target.Height)}
}
