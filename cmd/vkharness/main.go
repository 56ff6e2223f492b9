package main

import (
	"log"
	"runtime"

	"github.com/lunarbyte/vkharness/internal/render"
	"github.com/veandco/go-sdl2/sdl"
)

const (
	windowTitle  = "Hello Triangle - Vulkan"
	windowWidth  = 1080
	windowHeight = 720

	frameSlots = 2

	vertShaderPath = "shaders/vert.spv"
	fragShaderPath = "shaders/frag.spv"
)

func main() {
	// SDL event handling and Vulkan presentation stay on one thread.
	runtime.LockOSThread()

	err := run()
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}

func run() error {
	// Shaders are validated before any device object exists, so a
	// skipped compile step fails fast.
	vertCode, err := render.LoadShaderWords(vertShaderPath)
	if err != nil {
		return err
	}

	fragCode, err := render.LoadShaderWords(fragShaderPath)
	if err != nil {
		return err
	}

	err = sdl.Init(sdl.INIT_VIDEO)
	if err != nil {
		return err
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(windowTitle,
		sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
		windowWidth, windowHeight,
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN)
	if err != nil {
		return err
	}
	defer window.Destroy()

	ctx, err := render.NewContext(window, true)
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	plan, err := render.PlanSurface(ctx, frameSlots)
	if err != nil {
		return err
	}

	pool, err := render.NewImagePool(ctx, plan)
	if err != nil {
		return err
	}
	defer pool.Destroy()

	pipeline, err := render.NewPipeline(ctx, vertCode, fragCode, plan.Format.Format)
	if err != nil {
		return err
	}
	defer pipeline.Destroy()

	frames, err := render.NewFrameSync(ctx, frameSlots)
	if err != nil {
		return err
	}
	defer frames.Destroy()

	recorder, err := render.NewRecorder(ctx, pool, pipeline, frameSlots)
	if err != nil {
		return err
	}
	defer recorder.Destroy()

	controller, err := render.NewController(frames, pool, recorder, render.NewGraphicsQueue(ctx))
	if err != nil {
		return err
	}

	return controller.Run(closeRequested)
}

func closeRequested() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		switch event.(type) {
		case *sdl.QuitEvent:
			return true
		}
	}

	return false
}
