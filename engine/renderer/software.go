package renderer

import (
	"context"
	"image"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/pipeline"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/systems"
)

// softwareBackend runs kernels and the int16 textured UI variant on the CPU,
// spread over the job system when one is available.
type softwareBackend struct {
	jobs *systems.JobSystem
	ui   *pipeline.Pipeline[int16]
}

func newSoftwareBackend(jobs *systems.JobSystem) *softwareBackend {
	return &softwareBackend{jobs: jobs}
}

func (sb *softwareBackend) Initialize() error {
	var opts []pipeline.Option
	if sb.jobs != nil {
		opts = append(opts, pipeline.WithJobSystem(sb.jobs))
	}
	sb.ui = pipeline.NewVariantC(opts...)
	core.LogDebug("software backend ready with pipeline %s", sb.ui.Capabilities().Name)
	return nil
}

func (sb *softwareBackend) Shutdown() error {
	sb.ui = nil
	return nil
}

func (sb *softwareBackend) Dispatch(ctx context.Context, k *kernel.Kernel, region metadata.CopyRegion, src []uint32, dst *metadata.Image) error {
	return k.Dispatch(ctx, region, src, dst)
}

func (sb *softwareBackend) DrawBatch(ctx context.Context, target *metadata.Image, batch *DrawBatch, pc metadata.PushConstants, texture *metadata.Image, scissor image.Rectangle) error {
	if sb.ui == nil {
		return core.ErrNotInitialized
	}
	return sb.ui.DrawWithState(ctx, target, batch.Vertices, batch.Indices, pipeline.DrawState{
		PushConstants: pc,
		Texture:       texture,
		Scissor:       scissor,
	})
}
