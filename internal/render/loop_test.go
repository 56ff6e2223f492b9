package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// frameScript implements all four controller collaborators in memory so
// the loop's ordering can be checked without a device. Fences are
// booleans: created signaled, unsignaled by Reset, re-signaled by
// Submit.
type frameScript struct {
	t *testing.T

	slots    int
	signaled []bool
	armed    []bool

	recorded []int
	acquires int
	presents int
	drains   int

	nextImage int
	lastSlot  int

	acquireErr    error
	presentErr    error
	failPresentAt int
	submitErr     error
}

func newFrameScript(t *testing.T, slots int) *frameScript {
	script := &frameScript{
		t:        t,
		slots:    slots,
		signaled: make([]bool, slots),
		armed:    make([]bool, slots),
	}
	for i := range script.signaled {
		script.signaled[i] = true
	}

	return script
}

func (f *frameScript) Slots() int { return f.slots }

func (f *frameScript) Wait(slot int) error {
	if !f.signaled[slot] {
		f.t.Fatalf("waited on slot %d with an unsignaled fence", slot)
	}
	return nil
}

func (f *frameScript) Reset(slot int) error {
	f.signaled[slot] = false
	f.armed[slot] = true
	return nil
}

func (f *frameScript) ImageAcquired(slot int) core1_0.Semaphore  { return core1_0.Semaphore{} }
func (f *frameScript) RenderFinished(slot int) core1_0.Semaphore { return core1_0.Semaphore{} }
func (f *frameScript) Fence(slot int) core1_0.Fence              { return core1_0.Fence{} }

func (f *frameScript) Acquire(signal core1_0.Semaphore) (int, error) {
	f.acquires++
	if f.acquireErr != nil {
		return 0, f.acquireErr
	}

	image := f.nextImage
	f.nextImage = (f.nextImage + 1) % f.slots
	return image, nil
}

func (f *frameScript) Present(imageIndex int, wait core1_0.Semaphore) error {
	f.presents++
	if f.failPresentAt != 0 && f.presents >= f.failPresentAt {
		return f.presentErr
	}
	if f.failPresentAt == 0 {
		return f.presentErr
	}
	return nil
}

func (f *frameScript) Record(slot, imageIndex int) (core1_0.CommandBuffer, error) {
	if !f.armed[slot] {
		f.t.Fatalf("recorded slot %d without wait+reset since its last submit", slot)
	}
	f.recorded = append(f.recorded, slot)
	f.lastSlot = slot
	return core1_0.CommandBuffer{}, nil
}

func (f *frameScript) Submit(buffer core1_0.CommandBuffer, wait, signal core1_0.Semaphore, fence core1_0.Fence) error {
	if f.submitErr != nil {
		return f.submitErr
	}

	// The fake device finishes instantly: the slot's fence signals.
	f.signaled[f.lastSlot] = true
	f.armed[f.lastSlot] = false
	return nil
}

func (f *frameScript) Drain() error {
	f.drains++
	return nil
}

func stopAfter(frames int) func() bool {
	remaining := frames
	return func() bool {
		if remaining == 0 {
			return true
		}
		remaining--
		return false
	}
}

func TestControllerSlotRotation(t *testing.T) {
	script := newFrameScript(t, 2)
	controller, err := NewController(script, script, script, script)
	if err != nil {
		t.Fatalf("NewController: %+v", err)
	}

	err = controller.Run(stopAfter(3))
	if err != nil {
		t.Fatalf("Run: %+v", err)
	}

	want := []int{0, 1, 0}
	if len(script.recorded) != len(want) {
		t.Fatalf("recorded %d frames, want %d", len(script.recorded), len(want))
	}
	for i, slot := range want {
		if script.recorded[i] != slot {
			t.Errorf("frame %d used slot %d, want %d", i, script.recorded[i], slot)
		}
	}

	if script.drains != 1 {
		t.Errorf("drained %d times, want 1", script.drains)
	}
}

func TestControllerSingleSlot(t *testing.T) {
	script := newFrameScript(t, 1)
	controller, err := NewController(script, script, script, script)
	if err != nil {
		t.Fatalf("NewController: %+v", err)
	}

	err = controller.Run(stopAfter(4))
	if err != nil {
		t.Fatalf("Run: %+v", err)
	}

	for i, slot := range script.recorded {
		if slot != 0 {
			t.Errorf("frame %d used slot %d, want 0", i, slot)
		}
	}
	if len(script.recorded) != 4 {
		t.Errorf("recorded %d frames, want 4", len(script.recorded))
	}
}

func TestControllerPresentFailureStopsLoop(t *testing.T) {
	script := newFrameScript(t, 2)
	controller, err := NewController(script, script, script, script)
	if err != nil {
		t.Fatalf("NewController: %+v", err)
	}

	// The first frame presents fine; the second present fails. The loop
	// must stop without acquiring a third image.
	script.presentErr = errors.Mark(errors.New("surface gone"), ErrPresent)
	script.failPresentAt = 2

	runErr := controller.Run(func() bool { return false })
	if !errors.Is(runErr, ErrPresent) {
		t.Fatalf("got %v, want a presentation error", runErr)
	}
	if script.acquires != 2 {
		t.Errorf("acquired %d images, want 2", script.acquires)
	}
	if script.drains != 1 {
		t.Errorf("drained %d times, want 1", script.drains)
	}
}

func TestControllerAcquireFailureDrains(t *testing.T) {
	script := newFrameScript(t, 2)
	script.acquireErr = errors.Mark(errors.New("surface out of date"), ErrAcquire)

	controller, err := NewController(script, script, script, script)
	if err != nil {
		t.Fatalf("NewController: %+v", err)
	}

	runErr := controller.Run(func() bool { return false })
	if !errors.Is(runErr, ErrAcquire) {
		t.Fatalf("got %v, want an acquire error", runErr)
	}
	if len(script.recorded) != 0 {
		t.Errorf("recorded %d frames after failed acquire, want 0", len(script.recorded))
	}
	if script.drains != 1 {
		t.Errorf("drained %d times, want 1", script.drains)
	}
}

func TestControllerSubmitFailureDrains(t *testing.T) {
	script := newFrameScript(t, 2)
	script.submitErr = errors.Mark(errors.New("queue rejected work"), ErrSubmit)

	controller, err := NewController(script, script, script, script)
	if err != nil {
		t.Fatalf("NewController: %+v", err)
	}

	runErr := controller.Run(func() bool { return false })
	if !errors.Is(runErr, ErrSubmit) {
		t.Fatalf("got %v, want a submit error", runErr)
	}
	if script.presents != 0 {
		t.Errorf("presented %d times after failed submit, want 0", script.presents)
	}
	if script.drains != 1 {
		t.Errorf("drained %d times, want 1", script.drains)
	}
}

func TestControllerStopBeforeFirstFrame(t *testing.T) {
	script := newFrameScript(t, 2)
	controller, err := NewController(script, script, script, script)
	if err != nil {
		t.Fatalf("NewController: %+v", err)
	}

	err = controller.Run(func() bool { return true })
	if err != nil {
		t.Fatalf("Run: %+v", err)
	}

	if script.acquires != 0 {
		t.Errorf("acquired %d images before stop, want 0", script.acquires)
	}
	if script.drains != 1 {
		t.Errorf("drained %d times, want 1", script.drains)
	}
}

func TestNewControllerRejectsZeroSlots(t *testing.T) {
	script := newFrameScript(t, 0)
	_, err := NewController(script, script, script, script)
	if !errors.Is(err, ErrSetup) {
		t.Fatalf("got %v, want a setup error", err)
	}
}
