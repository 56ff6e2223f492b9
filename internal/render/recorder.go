package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_dynamic_rendering"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

const (
	triangleVertexCount   = 3
	triangleInstanceCount = 1
)

// Recorder records each frame's command buffer: transition the target
// image to a renderable layout, draw the triangle inside a dynamic
// rendering scope, and transition the image to a presentable layout.
// One command buffer per in-flight slot, reset and re-recorded every
// frame.
type Recorder struct {
	device    core1_0.CoreDeviceDriver
	rendering khr_dynamic_rendering.ExtensionDriver

	pool     *ImagePool
	pipeline *Pipeline

	commandPool core1_0.CommandPool
	buffers     []core1_0.CommandBuffer
}

// NewRecorder allocates one resettable command buffer per slot on the
// graphics queue family. The pipeline must target the pool's format.
func NewRecorder(ctx *Context, pool *ImagePool, pipeline *Pipeline, slots int) (*Recorder, error) {
	if pipeline.Format() != pool.Format() {
		return nil, errors.Mark(
			errors.Newf("pipeline targets format %s but pool holds %s", pipeline.Format(), pool.Format()),
			ErrSetup)
	}

	if slots > pool.Count() {
		return nil, errors.Mark(
			errors.Newf("%d frame slots but only %d presentable images", slots, pool.Count()),
			ErrSetup)
	}

	commandPool, _, err := ctx.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: ctx.graphicsFamily,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}

	recorder := &Recorder{
		device:      ctx.deviceDriver,
		rendering:   khr_dynamic_rendering.CreateExtensionDriverFromCoreDriver(ctx.deviceDriver),
		pool:        pool,
		pipeline:    pipeline,
		commandPool: commandPool,
	}

	recorder.buffers, _, err = ctx.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: slots,
	})
	if err != nil {
		recorder.Destroy()
		return nil, errors.Wrap(err, "allocate command buffers")
	}

	return recorder, nil
}

// Record resets the slot's command buffer and records the frame
// targeting the given presentable image. The returned buffer is ready
// for submission.
func (r *Recorder) Record(slot, imageIndex int) (core1_0.CommandBuffer, error) {
	buffer := r.buffers[slot]
	image := r.pool.images[imageIndex]

	_, err := r.device.ResetCommandBuffer(buffer, 0)
	if err != nil {
		return buffer, errors.Mark(errors.Wrap(err, "reset command buffer"), ErrRecord)
	}

	_, err = r.device.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return buffer, errors.Mark(errors.Wrap(err, "begin command buffer"), ErrRecord)
	}

	err = r.device.CmdPipelineBarrier(buffer,
		core1_0.PipelineStageTopOfPipe, core1_0.PipelineStageColorAttachmentOutput, 0,
		nil, nil, []core1_0.ImageMemoryBarrier{attachmentBarrier(image)})
	if err != nil {
		return buffer, errors.Mark(errors.Wrap(err, "record attachment barrier"), ErrRecord)
	}

	err = r.rendering.CmdBeginRendering(buffer, renderingInfo(r.pool.views[imageIndex], r.pool.extent))
	if err != nil {
		return buffer, errors.Mark(errors.Wrap(err, "begin rendering"), ErrRecord)
	}

	r.device.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, r.pipeline.handle)
	r.device.CmdSetViewport(buffer, fullViewport(r.pool.extent))
	r.device.CmdSetScissor(buffer, fullScissor(r.pool.extent))
	r.device.CmdDraw(buffer, triangleVertexCount, triangleInstanceCount, 0, 0)

	r.rendering.CmdEndRendering(buffer)

	err = r.device.CmdPipelineBarrier(buffer,
		core1_0.PipelineStageColorAttachmentOutput, core1_0.PipelineStageBottomOfPipe, 0,
		nil, nil, []core1_0.ImageMemoryBarrier{presentBarrier(image)})
	if err != nil {
		return buffer, errors.Mark(errors.Wrap(err, "record present barrier"), ErrRecord)
	}

	_, err = r.device.EndCommandBuffer(buffer)
	if err != nil {
		return buffer, errors.Mark(errors.Wrap(err, "end command buffer"), ErrRecord)
	}

	return buffer, nil
}

// attachmentBarrier moves the image from whatever it held last frame to
// a writable color-attachment layout. The old contents are discarded.
func attachmentBarrier(image core1_0.Image) core1_0.ImageMemoryBarrier {
	return core1_0.ImageMemoryBarrier{
		OldLayout: core1_0.ImageLayoutUndefined,
		NewLayout: core1_0.ImageLayoutColorAttachmentOptimal,

		SrcAccessMask: 0,
		DstAccessMask: core1_0.AccessColorAttachmentWrite,

		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,

		Image: image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask: core1_0.ImageAspectColor,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
}

// presentBarrier hands the finished attachment to the presentation
// engine.
func presentBarrier(image core1_0.Image) core1_0.ImageMemoryBarrier {
	return core1_0.ImageMemoryBarrier{
		OldLayout: core1_0.ImageLayoutColorAttachmentOptimal,
		NewLayout: khr_swapchain.ImageLayoutPresentSrc,

		SrcAccessMask: core1_0.AccessColorAttachmentWrite,
		DstAccessMask: 0,

		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,

		Image: image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask: core1_0.ImageAspectColor,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
}

func renderingInfo(view core1_0.ImageView, extent core1_0.Extent2D) khr_dynamic_rendering.RenderingInfo {
	return khr_dynamic_rendering.RenderingInfo{
		RenderArea: core1_0.Rect2D{
			Extent: extent,
		},
		LayerCount: 1,
		ColorAttachments: []khr_dynamic_rendering.RenderingAttachmentInfo{
			{
				ImageView:   view,
				ImageLayout: core1_0.ImageLayoutColorAttachmentOptimal,
				LoadOp:      core1_0.AttachmentLoadOpClear,
				StoreOp:     core1_0.AttachmentStoreOpStore,
				ClearValue:  core1_0.ClearValueFloat{0, 0, 0, 1},
			},
		},
	}
}

func fullViewport(extent core1_0.Extent2D) core1_0.Viewport {
	return core1_0.Viewport{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
}

func fullScissor(extent core1_0.Extent2D) core1_0.Rect2D {
	return core1_0.Rect2D{
		Extent: extent,
	}
}

// Destroy frees the command buffers and pool.
func (r *Recorder) Destroy() {
	if len(r.buffers) > 0 {
		r.device.FreeCommandBuffers(r.buffers...)
		r.buffers = nil
	}

	if r.commandPool.Initialized() {
		r.device.DestroyCommandPool(r.commandPool, nil)
		r.commandPool = core1_0.CommandPool{}
	}
}
