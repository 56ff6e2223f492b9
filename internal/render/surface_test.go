package render

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

func TestResolveExtentFixedByPlatform(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent: core1_0.Extent2D{Width: 1080, Height: 720},
	}

	extent := resolveExtent(capabilities, 4000, 4000)
	if extent.Width != 1080 || extent.Height != 720 {
		t.Errorf("got %dx%d, want the platform's 1080x720", extent.Width, extent.Height)
	}
}

func TestResolveExtentClampsDrawableSize(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		CurrentExtent:  core1_0.Extent2D{Width: -1, Height: -1},
		MinImageExtent: core1_0.Extent2D{Width: 200, Height: 200},
		MaxImageExtent: core1_0.Extent2D{Width: 2000, Height: 2000},
	}

	tests := []struct {
		name                  string
		fbWidth, fbHeight     int
		wantWidth, wantHeight int
	}{
		{"in range", 1080, 720, 1080, 720},
		{"below minimum", 100, 50, 200, 200},
		{"above maximum", 5000, 3000, 2000, 2000},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			extent := resolveExtent(capabilities, test.fbWidth, test.fbHeight)
			if extent.Width != test.wantWidth || extent.Height != test.wantHeight {
				t.Errorf("got %dx%d, want %dx%d", extent.Width, extent.Height, test.wantWidth, test.wantHeight)
			}
		})
	}
}

func TestChooseImageCountRaisesToMinimum(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		MinImageCount: 3,
		MaxImageCount: 8,
	}

	count, err := chooseImageCount(capabilities, 2)
	if err != nil {
		t.Fatalf("chooseImageCount: %+v", err)
	}
	if count != 3 {
		t.Errorf("got %d images, want the surface minimum 3", count)
	}
}

func TestChooseImageCountKeepsSlotCount(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		MinImageCount: 2,
		MaxImageCount: 8,
	}

	count, err := chooseImageCount(capabilities, 2)
	if err != nil {
		t.Fatalf("chooseImageCount: %+v", err)
	}
	if count != 2 {
		t.Errorf("got %d images, want 2", count)
	}
}

func TestChooseImageCountUnboundedMaximum(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		MinImageCount: 2,
		MaxImageCount: 0,
	}

	count, err := chooseImageCount(capabilities, 4)
	if err != nil {
		t.Fatalf("chooseImageCount: %+v", err)
	}
	if count != 4 {
		t.Errorf("got %d images, want 4", count)
	}
}

func TestChooseImageCountRejectsNarrowSurface(t *testing.T) {
	capabilities := &khr_surface.SurfaceCapabilities{
		MinImageCount: 1,
		MaxImageCount: 1,
	}

	_, err := chooseImageCount(capabilities, 2)
	if !errors.Is(err, ErrSetup) {
		t.Fatalf("got %v, want a setup error", err)
	}
}

func TestChooseSurfaceFormatPrefersSRGB(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
		{Format: core1_0.FormatB8G8R8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format := chooseSurfaceFormat(formats)
	if format.Format != core1_0.FormatB8G8R8A8SRGB {
		t.Errorf("got %s, want B8G8R8A8 sRGB", format.Format)
	}
}

func TestChooseSurfaceFormatFallsBackToFirst(t *testing.T) {
	formats := []khr_surface.SurfaceFormat{
		{Format: core1_0.FormatR8G8B8A8SRGB, ColorSpace: khr_surface.ColorSpaceSRGBNonlinear},
	}

	format := chooseSurfaceFormat(formats)
	if format.Format != core1_0.FormatR8G8B8A8SRGB {
		t.Errorf("got %s, want the first advertised format", format.Format)
	}
}

func TestChoosePresentMode(t *testing.T) {
	withMailbox := []khr_surface.PresentMode{
		khr_surface.PresentModeFIFO,
		khr_surface.PresentModeMailbox,
	}
	if mode := choosePresentMode(withMailbox); mode != khr_surface.PresentModeMailbox {
		t.Errorf("got %s, want mailbox", mode)
	}

	fifoOnly := []khr_surface.PresentMode{khr_surface.PresentModeFIFO}
	if mode := choosePresentMode(fifoOnly); mode != khr_surface.PresentModeFIFO {
		t.Errorf("got %s, want fifo", mode)
	}
}
