// Package kernel converts interleaved integer channel samples into float RGBA
// texels of a target image, one logical worker per source pixel.
package kernel

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/systems"
)

// WorkgroupSize is the side of the square workgroup a dispatch is split into.
const WorkgroupSize uint32 = 32

type Option func(*Kernel)

// WithFlattenOrder selects how (col, row) is flattened into a source pixel index.
func WithFlattenOrder(order metadata.FlattenOrder) Option {
	return func(k *Kernel) { k.order = order }
}

// WithNormalization selects which channels are divided by the channel range max.
func WithNormalization(n metadata.ChannelNormalization) Option {
	return func(k *Kernel) { k.normalization = n }
}

// WithJobSystem runs workgroups on js instead of the calling goroutine.
func WithJobSystem(js *systems.JobSystem) Option {
	return func(k *Kernel) { k.jobs = js }
}

/**
 * @brief A normalization kernel specialised for one channel layout. Safe for
 * concurrent dispatches as long as their target windows do not overlap.
 */
type Kernel struct {
	layout        metadata.ChannelLayout
	order         metadata.FlattenOrder
	normalization metadata.ChannelNormalization
	jobs          *systems.JobSystem
	rangeMax      float32
}

func New(layout metadata.ChannelLayout, opts ...Option) (*Kernel, error) {
	if layout.NumChannels() == 0 {
		return nil, fmt.Errorf("%w: got 0", core.ErrInvalidChannelCount)
	}
	k := &Kernel{
		layout:   layout,
		order:    metadata.FlattenByWidth,
		rangeMax: float32(layout.ChannelRangeMax()),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

func (k *Kernel) Layout() metadata.ChannelLayout {
	return k.layout
}

func (k *Kernel) FlattenOrder() metadata.FlattenOrder {
	return k.order
}

func (k *Kernel) Normalization() metadata.ChannelNormalization {
	return k.normalization
}

func (k *Kernel) secondary(raw uint32) float32 {
	if k.normalization == metadata.NormalizeAll {
		return float32(raw) / k.rangeMax
	}
	return float32(raw)
}

// Invoke runs one logical worker. Workers outside the source extent do
// nothing. The caller guarantees src and dst are large enough, see Validate.
func (k *Kernel) Invoke(gid math.UVec2, region metadata.CopyRegion, src []uint32, dst *metadata.Image) {
	extent := region.SourceExtent
	if gid.X >= extent.X || gid.Y >= extent.Y {
		return
	}
	n := uint64(k.layout.NumChannels())
	i := k.order.Pixel(gid.X, gid.Y, extent) * n

	c := math.Vec4{X: float32(src[i]) / k.rangeMax, Y: 0, Z: 0, W: 1}
	if n > 1 {
		c.Y = k.secondary(src[i+1])
	}
	if n > 2 {
		c.Z = k.secondary(src[i+2])
	}
	if n > 3 {
		c.W = k.secondary(src[i+3])
	}
	dst.SetTexel(region.TargetOffset.X+gid.X, region.TargetOffset.Y+gid.Y, c)
}

// GroupCount returns the number of workgroups needed per axis to cover extent.
func GroupCount(extent math.UVec2) math.UVec2 {
	return math.UVec2{
		X: math.DivCeil(extent.X, WorkgroupSize),
		Y: math.DivCeil(extent.Y, WorkgroupSize),
	}
}

// Validate checks the preconditions of a dispatch.
func (k *Kernel) Validate(region metadata.CopyRegion, src []uint32, dst *metadata.Image) error {
	if dst == nil {
		return core.ErrNilTarget
	}
	extent := region.SourceExtent
	if extent.X == 0 || extent.Y == 0 {
		return nil
	}
	if !dst.Covers(region.TargetOffset, extent) {
		return fmt.Errorf("%w: %dx%d at (%d,%d) into %dx%d", core.ErrTargetTooSmall,
			extent.X, extent.Y, region.TargetOffset.X, region.TargetOffset.Y, dst.Width, dst.Height)
	}
	if need := k.order.RequiredSamples(extent, k.layout.NumChannels()); uint64(len(src)) < need {
		return fmt.Errorf("%w: need %d samples, got %d", core.ErrSourceTooShort, need, len(src))
	}
	return nil
}

func (k *Kernel) runGroup(group math.UVec2, region metadata.CopyRegion, src []uint32, dst *metadata.Image) {
	base := math.UVec2{X: group.X * WorkgroupSize, Y: group.Y * WorkgroupSize}
	for ly := uint32(0); ly < WorkgroupSize; ly++ {
		for lx := uint32(0); lx < WorkgroupSize; lx++ {
			k.Invoke(math.UVec2{X: base.X + lx, Y: base.Y + ly}, region, src, dst)
		}
	}
}

// Dispatch covers the source extent with workgroups and writes every source
// pixel exactly once into dst. Texels outside the target window are untouched.
func (k *Kernel) Dispatch(ctx context.Context, region metadata.CopyRegion, src []uint32, dst *metadata.Image) error {
	if err := k.Validate(region, src, dst); err != nil {
		return err
	}
	groups := GroupCount(region.SourceExtent)
	if groups.X == 0 || groups.Y == 0 {
		return nil
	}

	clock := core.NewClock()
	clock.Start()
	defer func() {
		clock.Stop()
		core.MetricsRecord(core.MetricStageKernel, clock.Elapsed())
	}()

	if k.jobs == nil {
		for gy := uint32(0); gy < groups.Y; gy++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			for gx := uint32(0); gx < groups.X; gx++ {
				k.runGroup(math.UVec2{X: gx, Y: gy}, region, src, dst)
			}
		}
		return nil
	}

	work := make([]func(), 0, groups.X*groups.Y)
	for gy := uint32(0); gy < groups.Y; gy++ {
		for gx := uint32(0); gx < groups.X; gx++ {
			group := math.UVec2{X: gx, Y: gy}
			work = append(work, func() { k.runGroup(group, region, src, dst) })
		}
	}
	return k.jobs.Run(ctx, metadata.JOB_TYPE_DISPATCH, work)
}
