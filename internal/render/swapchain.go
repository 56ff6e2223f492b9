package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// ImagePool is the fixed set of presentable images the loop renders
// into: the swapchain, its images, and one color view per image. The
// set never changes size after construction.
type ImagePool struct {
	device    core1_0.CoreDeviceDriver
	extension khr_swapchain.ExtensionDriver

	presentQueue core1_0.Queue
	swapchain    khr_swapchain.Swapchain
	images       []core1_0.Image
	views        []core1_0.ImageView
	format       core1_0.Format
	extent       core1_0.Extent2D
}

// NewImagePool builds the swapchain described by plan and wraps every
// swapchain image in a 2D color view.
func NewImagePool(ctx *Context, plan SurfacePlan) (*ImagePool, error) {
	capabilities, _, err := ctx.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(ctx.surface, ctx.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if ctx.graphicsFamily != ctx.presentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = []int{ctx.graphicsFamily, ctx.presentFamily}
	}

	extension := khr_swapchain.CreateExtensionDriverFromCoreDriver(ctx.deviceDriver)
	swapchain, _, err := extension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: ctx.surface,

		MinImageCount:    plan.ImageCount,
		ImageFormat:      plan.Format.Format,
		ImageColorSpace:  plan.Format.ColorSpace,
		ImageExtent:      plan.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    plan.PresentMode,
		Clipped:        true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	pool := &ImagePool{
		device:       ctx.deviceDriver,
		extension:    extension,
		presentQueue: ctx.presentQueue,
		swapchain:    swapchain,
		format:       plan.Format.Format,
		extent:       plan.Extent,
	}

	pool.images, _, err = extension.GetSwapchainImages(swapchain)
	if err != nil {
		pool.Destroy()
		return nil, errors.Wrap(err, "get swapchain images")
	}

	for _, image := range pool.images {
		view, _, err := ctx.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   pool.format,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask: core1_0.ImageAspectColor,
				LevelCount: 1,
				LayerCount: 1,
			},
		})
		if err != nil {
			pool.Destroy()
			return nil, errors.Wrap(err, "create swapchain image view")
		}
		pool.views = append(pool.views, view)
	}

	return pool, nil
}

// Count reports how many presentable images the pool holds.
func (p *ImagePool) Count() int {
	return len(p.images)
}

// Format reports the pixel format shared by every image in the pool.
func (p *ImagePool) Format() core1_0.Format {
	return p.format
}

// Extent reports the pixel dimensions shared by every image in the pool.
func (p *ImagePool) Extent() core1_0.Extent2D {
	return p.extent
}

// Acquire asks the presentation engine for the next renderable image
// and has it signal the given semaphore when the image is ready. An
// out-of-date surface is fatal: the harness does not rebuild the pool.
func (p *ImagePool) Acquire(signal core1_0.Semaphore) (int, error) {
	imageIndex, res, err := p.extension.AcquireNextImage(p.swapchain, common.NoTimeout, &signal, nil)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "acquire next image"), ErrAcquire)
	}
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, errors.Mark(errors.New("surface out of date during acquire"), ErrAcquire)
	}

	return imageIndex, nil
}

// Present queues the image for display once wait has been signaled.
func (p *ImagePool) Present(imageIndex int, wait core1_0.Semaphore) error {
	res, err := p.extension.QueuePresent(p.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{wait},
		Swapchains:     []khr_swapchain.Swapchain{p.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	if err != nil {
		return errors.Mark(errors.Wrap(err, "queue present"), ErrPresent)
	}
	if res == khr_swapchain.VKErrorOutOfDate {
		return errors.Mark(errors.New("surface out of date during present"), ErrPresent)
	}
	if res == khr_swapchain.VKSuboptimal {
		// Still presented; without resize handling there is nothing to rebuild.
		log.Println("swapchain suboptimal for surface, continuing")
	}

	return nil
}

// Destroy releases the views and the swapchain. In-flight work must be
// drained first.
func (p *ImagePool) Destroy() {
	for _, view := range p.views {
		p.device.DestroyImageView(view, nil)
	}
	p.views = nil

	if p.swapchain.Initialized() {
		p.extension.DestroySwapchain(p.swapchain, nil)
		p.swapchain = khr_swapchain.Swapchain{}
	}
}
