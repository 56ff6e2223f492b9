package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_dynamic_rendering"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

var deviceExtensions = []string{
	khr_swapchain.ExtensionName,
	khr_dynamic_rendering.ExtensionName,
}

// Context owns the instance- and device-level handles the other
// components borrow: drivers, surface, physical device, and the
// graphics and presentation queues. It is built once by NewContext and
// torn down by Destroy after the device has been drained.
type Context struct {
	window *sdl.Window

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver      ext_debug_utils.ExtensionDriver
	debugMessenger   ext_debug_utils.DebugUtilsMessenger
	surfaceExtension khr_surface.ExtensionDriver
	surface          khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	graphicsFamily int
	presentFamily  int

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	validation bool
}

// NewContext connects the given window to a Vulkan device with one
// graphics-capable and one presentation-capable queue (possibly the
// same queue). Every step is fatal on failure; nothing is retried.
func NewContext(window *sdl.Window, enableValidation bool) (*Context, error) {
	ctx := &Context{
		window:     window,
		validation: enableValidation,
	}

	var err error
	ctx.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan driver")
	}

	err = ctx.createInstance()
	if err != nil {
		return nil, err
	}

	err = ctx.setupDebugMessenger()
	if err != nil {
		return nil, err
	}

	err = ctx.createSurface()
	if err != nil {
		return nil, err
	}

	err = ctx.pickPhysicalDevice()
	if err != nil {
		return nil, err
	}

	err = ctx.createLogicalDevice()
	if err != nil {
		return nil, err
	}

	return ctx, nil
}

func (ctx *Context) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    "Hello Triangle",
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_3,
	}

	sdlExtensions := ctx.window.VulkanGetInstanceExtensions()
	extensions, _, err := ctx.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "enumerate instance extensions")
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Mark(errors.Newf("window system requires missing instance extension %s", ext), ErrSetup)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if ctx.validation {
		layers, _, err := ctx.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "enumerate instance layers")
		}

		for _, layer := range validationLayers {
			_, hasLayer := layers[layer]
			if !hasLayer {
				log.Printf("validation layer %s not available, continuing without validation", layer)
				ctx.validation = false
			}
		}
	}

	if ctx.validation {
		instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, validationLayers...)
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
		instanceOptions.Next = debugMessengerOptions()
	}

	ctx.instanceDriver, _, err = ctx.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "create instance")
	}

	return nil
}

func debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logValidation,
	}
}

func logValidation(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("[%s %s] %s", severity, msgType, data.Message)
	return false
}

func (ctx *Context) setupDebugMessenger() error {
	if !ctx.validation {
		return nil
	}

	var err error
	ctx.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(ctx.instanceDriver)
	ctx.debugMessenger, _, err = ctx.debugDriver.CreateDebugUtilsMessenger(nil, debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "create debug messenger")
	}

	return nil
}

func (ctx *Context) createSurface() error {
	ctx.surfaceExtension = khr_surface.CreateExtensionDriverFromCoreDriver(ctx.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(ctx.instanceDriver.Instance(), ctx.surfaceExtension, ctx.window)
	if err != nil {
		return errors.Wrap(err, "create window surface")
	}

	ctx.surface = surface
	return nil
}

func (ctx *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := ctx.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}

	for _, device := range physicalDevices {
		properties, err := ctx.instanceDriver.GetPhysicalDeviceProperties(device)
		if err != nil {
			return errors.Wrap(err, "query adapter properties")
		}

		if !ctx.isDeviceSuitable(device) {
			log.Printf("adapter %s: unsuitable, skipping", properties.DeviceName)
			continue
		}
		log.Printf("adapter %s: suitable", properties.DeviceName)

		// A discrete GPU wins over whatever was found first.
		if !ctx.physicalDevice.Initialized() || properties.DeviceType == core1_0.PhysicalDeviceTypeDiscreteGPU {
			ctx.physicalDevice = device
		}
	}

	if !ctx.physicalDevice.Initialized() {
		return errors.Mark(errors.New("no suitable GPU found"), ErrSetup)
	}

	return nil
}

func (ctx *Context) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := ctx.findQueueFamilies(device)
	if err != nil || !indices.isComplete() {
		return false
	}

	if !ctx.checkDeviceExtensionSupport(device) {
		return false
	}

	support, err := ctx.querySurfaceSupport(device)
	if err != nil {
		return false
	}

	return len(support.formats) > 0 && len(support.presentModes) > 0
}

func (ctx *Context) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := ctx.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

type queueFamilyIndices struct {
	graphicsFamily *int
	presentFamily  *int
}

func (i *queueFamilyIndices) isComplete() bool {
	return i.graphicsFamily != nil && i.presentFamily != nil
}

func (ctx *Context) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilyIndices, error) {
	indices := queueFamilyIndices{}
	queueFamilies := ctx.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.graphicsFamily = new(int)
			*indices.graphicsFamily = queueFamilyIdx
		}

		supported, _, err := ctx.surfaceExtension.GetPhysicalDeviceSurfaceSupport(ctx.surface, device, queueFamilyIdx)
		if err != nil {
			return indices, errors.Wrap(err, "query surface support")
		}

		if supported {
			indices.presentFamily = new(int)
			*indices.presentFamily = queueFamilyIdx
		}

		if indices.isComplete() {
			break
		}
	}

	return indices, nil
}

func (ctx *Context) createLogicalDevice() error {
	indices, err := ctx.findQueueFamilies(ctx.physicalDevice)
	if err != nil {
		return err
	}

	uniqueQueueFamilies := []int{*indices.graphicsFamily}
	if uniqueQueueFamilies[0] != *indices.presentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *indices.presentFamily)
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range uniqueQueueFamilies {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Makes the harness compatible with vulkan portability, necessary to run on mobile & mac
	extensions, _, err := ctx.instanceDriver.EnumerateDeviceExtensionProperties(ctx.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "enumerate device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	ctx.deviceDriver, _, err = ctx.instanceDriver.CreateDevice(ctx.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledExtensionNames: extensionNames,
		Next: khr_dynamic_rendering.PhysicalDeviceDynamicRenderingFeatures{
			DynamicRendering: true,
		},
	})
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}

	ctx.graphicsFamily = *indices.graphicsFamily
	ctx.presentFamily = *indices.presentFamily
	ctx.graphicsQueue = ctx.deviceDriver.GetQueue(ctx.graphicsFamily, 0)
	ctx.presentQueue = ctx.deviceDriver.GetQueue(ctx.presentFamily, 0)
	return nil
}

// Destroy releases the device, debug messenger, surface, and instance.
// The caller must have drained the device first.
func (ctx *Context) Destroy() {
	if ctx.deviceDriver != nil {
		ctx.deviceDriver.DestroyDevice(nil)
		ctx.deviceDriver = nil
	}

	if ctx.debugMessenger.Initialized() {
		ctx.debugDriver.DestroyDebugUtilsMessenger(ctx.debugMessenger, nil)
		ctx.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if ctx.surface.Initialized() {
		ctx.surfaceExtension.DestroySurface(ctx.surface, nil)
		ctx.surface = khr_surface.Surface{}
	}

	if ctx.instanceDriver != nil {
		ctx.instanceDriver.DestroyInstance(nil)
		ctx.instanceDriver = nil
	}
}
