package renderer

import (
	"context"
	"image"

	"github.com/spaghettifunk/lumen/engine/kernel"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// RendererBackend executes the two GPU workloads of the renderer: kernel
// dispatches and UI draw calls. Resource bookkeeping stays in the frontend.
type RendererBackend interface {
	Initialize() error
	Shutdown() error
	Dispatch(ctx context.Context, k *kernel.Kernel, region metadata.CopyRegion, src []uint32, dst *metadata.Image) error
	DrawBatch(ctx context.Context, target *metadata.Image, batch *DrawBatch, pc metadata.PushConstants, texture *metadata.Image, scissor image.Rectangle) error
}
