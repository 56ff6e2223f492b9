package render

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// A fence that stays unsignaled this long means the device hung or was
// lost, not that the GPU is busy.
const fenceWaitBound = 5 * time.Second

// FrameSync holds the per-slot synchronization primitives: an
// image-acquired semaphore, a render-finished semaphore, and an
// in-flight fence created signaled so the first wait on each slot
// passes immediately. Everything is allocated up front and never
// reallocated.
type FrameSync struct {
	device core1_0.CoreDeviceDriver

	imageAcquired  []core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       []core1_0.Fence
}

// NewFrameSync allocates primitives for the given number of in-flight
// slots.
func NewFrameSync(ctx *Context, slots int) (*FrameSync, error) {
	if slots < 1 {
		return nil, errors.Mark(errors.Newf("need at least 1 frame slot, got %d", slots), ErrSetup)
	}

	sync := &FrameSync{device: ctx.deviceDriver}

	for i := 0; i < slots; i++ {
		acquired, _, err := ctx.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			sync.Destroy()
			return nil, errors.Wrap(err, "create image-acquired semaphore")
		}
		sync.imageAcquired = append(sync.imageAcquired, acquired)

		finished, _, err := ctx.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			sync.Destroy()
			return nil, errors.Wrap(err, "create render-finished semaphore")
		}
		sync.renderFinished = append(sync.renderFinished, finished)

		fence, _, err := ctx.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			sync.Destroy()
			return nil, errors.Wrap(err, "create in-flight fence")
		}
		sync.inFlight = append(sync.inFlight, fence)
	}

	return sync, nil
}

// Slots reports the number of in-flight slots.
func (s *FrameSync) Slots() int {
	return len(s.inFlight)
}

// Wait blocks until the slot's fence signals, bounded by fenceWaitBound.
func (s *FrameSync) Wait(slot int) error {
	res, err := s.device.WaitForFences(true, fenceWaitBound, s.inFlight[slot])
	if err != nil {
		return errors.Wrapf(err, "wait for slot %d fence", slot)
	}
	if res == core1_0.VKTimeout {
		return errors.Mark(errors.Newf("slot %d fence unsignaled after %v", slot, fenceWaitBound), ErrDeviceLost)
	}

	return nil
}

// Reset returns the slot's fence to the unsignaled state.
func (s *FrameSync) Reset(slot int) error {
	_, err := s.device.ResetFences(s.inFlight[slot])
	if err != nil {
		return errors.Wrapf(err, "reset slot %d fence", slot)
	}

	return nil
}

// ImageAcquired returns the slot's image-acquired semaphore.
func (s *FrameSync) ImageAcquired(slot int) core1_0.Semaphore {
	return s.imageAcquired[slot]
}

// RenderFinished returns the slot's render-finished semaphore.
func (s *FrameSync) RenderFinished(slot int) core1_0.Semaphore {
	return s.renderFinished[slot]
}

// Fence returns the slot's in-flight fence.
func (s *FrameSync) Fence(slot int) core1_0.Fence {
	return s.inFlight[slot]
}

// Destroy releases every primitive. In-flight work must be drained
// first.
func (s *FrameSync) Destroy() {
	for _, semaphore := range s.imageAcquired {
		s.device.DestroySemaphore(semaphore, nil)
	}
	s.imageAcquired = nil

	for _, semaphore := range s.renderFinished {
		s.device.DestroySemaphore(semaphore, nil)
	}
	s.renderFinished = nil

	for _, fence := range s.inFlight {
		s.device.DestroyFence(fence, nil)
	}
	s.inFlight = nil
}
