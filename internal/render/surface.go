package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// SurfacePlan is the negotiated shape of the presentable image pool:
// pixel format, presentation mode, extent, and how many images to ask
// the presentation engine for.
type SurfacePlan struct {
	Format      khr_surface.SurfaceFormat
	PresentMode khr_surface.PresentMode
	Extent      core1_0.Extent2D
	ImageCount  int
}

type surfaceSupport struct {
	capabilities *khr_surface.SurfaceCapabilities
	formats      []khr_surface.SurfaceFormat
	presentModes []khr_surface.PresentMode
}

func (ctx *Context) querySurfaceSupport(device core1_0.PhysicalDevice) (surfaceSupport, error) {
	var support surfaceSupport
	var err error

	support.capabilities, _, err = ctx.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(ctx.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "query surface capabilities")
	}

	support.formats, _, err = ctx.surfaceExtension.GetPhysicalDeviceSurfaceFormats(ctx.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}

	support.presentModes, _, err = ctx.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(ctx.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "query surface present modes")
	}

	return support, nil
}

// PlanSurface negotiates format, present mode, extent, and image count
// against the selected device's surface support. slots is the number of
// frames that may be in flight; the plan fails if the surface cannot
// supply at least that many images.
func PlanSurface(ctx *Context, slots int) (SurfacePlan, error) {
	support, err := ctx.querySurfaceSupport(ctx.physicalDevice)
	if err != nil {
		return SurfacePlan{}, err
	}

	fbWidth, fbHeight := ctx.window.VulkanGetDrawableSize()

	imageCount, err := chooseImageCount(support.capabilities, slots)
	if err != nil {
		return SurfacePlan{}, err
	}

	return SurfacePlan{
		Format:      chooseSurfaceFormat(support.formats),
		PresentMode: choosePresentMode(support.presentModes),
		Extent:      resolveExtent(support.capabilities, int(fbWidth), int(fbHeight)),
		ImageCount:  imageCount,
	}, nil
}

func chooseSurfaceFormat(formats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range formats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return formats[0]
}

func choosePresentMode(modes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, mode := range modes {
		if mode == khr_surface.PresentModeMailbox {
			return mode
		}
	}

	return khr_surface.PresentModeFIFO
}

// resolveExtent returns the surface's fixed extent when the platform
// dictates one, and otherwise clamps the drawable size into the
// supported range. Width of -1 is the "window manager decides" sentinel.
func resolveExtent(capabilities *khr_surface.SurfaceCapabilities, fbWidth, fbHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(fbWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(fbHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// chooseImageCount starts from the in-flight slot count and raises it to
// the surface's minimum. A surface whose maximum cannot cover the slots
// would force the loop to stall on images, so it is rejected outright.
func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities, slots int) (int, error) {
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < slots {
		return 0, errors.Mark(
			errors.Newf("surface supplies at most %d images, need %d", capabilities.MaxImageCount, slots),
			ErrSetup)
	}

	count := slots
	if count < capabilities.MinImageCount {
		count = capabilities.MinImageCount
	}

	return count, nil
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
