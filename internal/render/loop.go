package render

import (
	"log"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// How often the controller logs frame pacing, in frames.
const pacingLogInterval = 600

// SlotSync is the per-slot synchronization surface the controller
// drives. FrameSync implements it.
type SlotSync interface {
	Slots() int
	Wait(slot int) error
	Reset(slot int) error
	ImageAcquired(slot int) core1_0.Semaphore
	RenderFinished(slot int) core1_0.Semaphore
	Fence(slot int) core1_0.Fence
}

// ImageSource hands out presentable images and takes them back.
// ImagePool implements it.
type ImageSource interface {
	Acquire(signal core1_0.Semaphore) (int, error)
	Present(imageIndex int, wait core1_0.Semaphore) error
}

// FrameRecorder produces a submittable command buffer for a slot and
// target image. Recorder implements it.
type FrameRecorder interface {
	Record(slot, imageIndex int) (core1_0.CommandBuffer, error)
}

// Submitter hands recorded work to the graphics queue and drains the
// device. GraphicsQueue implements it.
type Submitter interface {
	Submit(buffer core1_0.CommandBuffer, wait, signal core1_0.Semaphore, fence core1_0.Fence) error
	Drain() error
}

// GraphicsQueue submits frames to the device's graphics queue.
type GraphicsQueue struct {
	device core1_0.CoreDeviceDriver
	queue  core1_0.Queue
}

// NewGraphicsQueue wraps the context's graphics queue.
func NewGraphicsQueue(ctx *Context) *GraphicsQueue {
	return &GraphicsQueue{
		device: ctx.deviceDriver,
		queue:  ctx.graphicsQueue,
	}
}

// Submit queues the buffer, waiting for wait at color-attachment output
// and signaling signal plus fence on completion.
func (q *GraphicsQueue) Submit(buffer core1_0.CommandBuffer, wait, signal core1_0.Semaphore, fence core1_0.Fence) error {
	_, err := q.device.QueueSubmit(q.queue, &fence, core1_0.SubmitInfo{
		WaitSemaphores:   []core1_0.Semaphore{wait},
		WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
		CommandBuffers:   []core1_0.CommandBuffer{buffer},
		SignalSemaphores: []core1_0.Semaphore{signal},
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "submit frame"), ErrSubmit)
	}

	return nil
}

// Drain blocks until the device finishes all queued work.
func (q *GraphicsQueue) Drain() error {
	_, err := q.device.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "device wait idle")
	}

	return nil
}

// Controller runs the frame loop: for each frame it waits on the
// current slot's fence, resets it, acquires an image, records, submits,
// presents, and advances to the next slot. The device is drained
// exactly once before Run returns, whether the loop ended cleanly or
// on an error.
type Controller struct {
	sync     SlotSync
	source   ImageSource
	recorder FrameRecorder
	queue    Submitter

	slot   int
	frames uint64
	spent  time.Duration
}

// NewController wires the loop's collaborators together.
func NewController(sync SlotSync, source ImageSource, recorder FrameRecorder, queue Submitter) (*Controller, error) {
	if sync.Slots() < 1 {
		return nil, errors.Mark(errors.New("controller needs at least one frame slot"), ErrSetup)
	}

	return &Controller{
		sync:     sync,
		source:   source,
		recorder: recorder,
		queue:    queue,
	}, nil
}

// Run renders frames until stop reports true, then drains. On a frame
// error the device is drained and the error returned; a drain failure
// is attached to it.
func (c *Controller) Run(stop func() bool) error {
	for !stop() {
		err := c.renderFrame()
		if err != nil {
			if errors.Is(err, ErrPresent) {
				log.Printf("presentation failed, shutting down: %v", err)
			}
			return errors.CombineErrors(err, c.queue.Drain())
		}
	}

	return c.queue.Drain()
}

func (c *Controller) renderFrame() error {
	start := hrtime.Now()
	slot := c.slot

	err := c.sync.Wait(slot)
	if err != nil {
		return err
	}

	err = c.sync.Reset(slot)
	if err != nil {
		return err
	}

	imageIndex, err := c.source.Acquire(c.sync.ImageAcquired(slot))
	if err != nil {
		return err
	}

	buffer, err := c.recorder.Record(slot, imageIndex)
	if err != nil {
		return err
	}

	err = c.queue.Submit(buffer, c.sync.ImageAcquired(slot), c.sync.RenderFinished(slot), c.sync.Fence(slot))
	if err != nil {
		return err
	}

	err = c.source.Present(imageIndex, c.sync.RenderFinished(slot))
	if err != nil {
		return err
	}

	c.slot = (c.slot + 1) % c.sync.Slots()

	c.frames++
	c.spent += hrtime.Now() - start
	if c.frames%pacingLogInterval == 0 {
		log.Printf("%d frames, avg %v/frame", c.frames, c.spent/time.Duration(c.frames))
	}

	return nil
}
