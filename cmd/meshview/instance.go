package main

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2"
	"github.com/vkngwrapper/meshes/gpu"
)

type QueueFamilyIndices struct {
	GraphicsFamily *int
	PresentFamily  *int
}

func (i *QueueFamilyIndices) IsComplete() bool {
	return i.GraphicsFamily != nil && i.PresentFamily != nil
}

func (v *Viewer) createInstance() error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    "meshview",
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "No Engine",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := v.window.VulkanGetInstanceExtensions()
	extensions, _, err := v.loader.AvailableExtensions()
	if err != nil {
		return err
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Newf("createInstance: cannot initialize sdl: missing extension %s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	if v.config.Validation {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	layers, _, err := v.loader.AvailableLayers()
	if err != nil {
		return err
	}

	if v.config.Validation {
		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Newf("createInstance: validation layer %s not available, install the LunarG Vulkan SDK or pass --no-validation", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = v.debugMessengerOptions()
	}

	v.instance, _, err = v.loader.CreateInstance(nil, instanceOptions)
	return err
}

func (v *Viewer) debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    v.logDebug,
	}
}

func (v *Viewer) setupDebugMessenger() error {
	if !v.config.Validation {
		return nil
	}

	var err error
	debugLoader := ext_debug_utils.CreateExtensionFromInstance(v.instance)
	v.debugMessenger, _, err = debugLoader.CreateDebugUtilsMessenger(v.instance, nil, v.debugMessengerOptions())
	return err
}

func (v *Viewer) logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	log.Printf("[%s %s] - %s", severity, msgType, data.Message)
	return false
}

func (v *Viewer) createSurface() error {
	surfaceLoader := khr_surface.CreateExtensionFromInstance(v.instance)

	surface, err := vkng_sdl2.CreateSurface(v.instance, surfaceLoader, v.window)
	if err != nil {
		return err
	}

	v.surface = surface
	return nil
}

func (v *Viewer) pickPhysicalDevice() error {
	physicalDevices, _, err := v.instance.EnumeratePhysicalDevices()
	if err != nil {
		return err
	}

	for _, device := range physicalDevices {
		if v.isDeviceSuitable(device) {
			v.physicalDevice = device
			break
		}
	}

	if v.physicalDevice == nil {
		return errors.New("no GPU supports the surface, the swapchain and sampler anisotropy")
	}

	v.queues, err = v.findQueueFamilies(v.physicalDevice)
	if err != nil {
		return err
	}

	properties, err := v.physicalDevice.Properties()
	if err != nil {
		return err
	}
	log.Printf("using %s", properties.DeviceName)

	return nil
}

func (v *Viewer) createLogicalDevice() error {
	uniqueQueueFamilies := []int{*v.queues.GraphicsFamily}
	if uniqueQueueFamilies[0] != *v.queues.PresentFamily {
		uniqueQueueFamilies = append(uniqueQueueFamilies, *v.queues.PresentFamily)
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

	// Required by portability implementations such as MoltenVK.
	extensions, _, err := v.physicalDevice.EnumerateDeviceExtensionProperties()
	if err != nil {
		return err
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	v.device, _, err = v.physicalDevice.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return err
	}

	v.graphicsQueue = v.device.GetQueue(*v.queues.GraphicsFamily, 0)
	v.presentQueue = v.device.GetQueue(*v.queues.PresentFamily, 0)
	return nil
}

func (v *Viewer) createCommandPool() error {
	pool, _, err := v.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: *v.queues.GraphicsFamily,
		Flags:            core1_0.CommandPoolCreateResetBuffer,
	})
	if err != nil {
		return err
	}

	v.commandPool = pool
	v.gpu = gpu.NewDevice(v.physicalDevice, v.device, v.graphicsQueue, v.commandPool)
	return nil
}

func (v *Viewer) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	indices, err := v.findQueueFamilies(device)
	if err != nil {
		return false
	}

	extensionsSupported := v.checkDeviceExtensionSupport(device)

	var swapChainAdequate bool
	if extensionsSupported {
		swapChainSupport, err := v.querySwapChainSupport(device)
		if err != nil {
			return false
		}

		swapChainAdequate = len(swapChainSupport.Formats) > 0 && len(swapChainSupport.PresentModes) > 0
	}

	features := device.Features()
	return indices.IsComplete() && extensionsSupported && swapChainAdequate && features.SamplerAnisotropy
}

func (v *Viewer) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := device.EnumerateDeviceExtensionProperties()
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

func (v *Viewer) findQueueFamilies(device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}
	queueFamilies := device.QueueFamilyProperties()

	for queueFamilyIdx, queueFamily := range queueFamilies {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.GraphicsFamily = new(int)
			*indices.GraphicsFamily = queueFamilyIdx
		}

		supported, _, err := v.surface.PhysicalDeviceSurfaceSupport(device, queueFamilyIdx)
		if err != nil {
			return indices, err
		}

		if supported {
			indices.PresentFamily = new(int)
			*indices.PresentFamily = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}
