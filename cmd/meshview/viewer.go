package main

import (
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/ext_debug_utils"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/meshes/config"
	"github.com/vkngwrapper/meshes/descriptor"
	"github.com/vkngwrapper/meshes/gpu"
	"github.com/vkngwrapper/meshes/mesh"
	"github.com/vkngwrapper/meshes/texture"
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
var deviceExtensions = []string{khr_swapchain.ExtensionName}

type Viewer struct {
	config config.Config

	window *sdl.Window
	loader core.Loader

	instance       core1_0.Instance
	debugMessenger ext_debug_utils.DebugUtilsMessenger
	surface        khr_surface.Surface

	physicalDevice core1_0.PhysicalDevice
	device         core1_0.Device
	queues         QueueFamilyIndices

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue

	swapchainExtension    khr_swapchain.Extension
	swapchain             khr_swapchain.Swapchain
	swapchainImages       []core1_0.Image
	swapchainImageFormat  core1_0.Format
	swapchainExtent       core1_0.Extent2D
	swapchainImageViews   []core1_0.ImageView
	swapchainFramebuffers []core1_0.Framebuffer

	depth *gpu.DepthTarget

	renderPass          core1_0.RenderPass
	descriptorPool      core1_0.DescriptorPool
	descriptorSetLayout core1_0.DescriptorSetLayout
	pipelineLayout      core1_0.PipelineLayout
	graphicsPipeline    core1_0.Pipeline

	commandPool    core1_0.CommandPool
	commandBuffers []core1_0.CommandBuffer

	imageAvailableSemaphore []core1_0.Semaphore
	renderFinishedSemaphore []core1_0.Semaphore
	inFlightFence           []core1_0.Fence
	imagesInFlight          []core1_0.Fence
	currentFrame            int

	gpu            *gpu.Device
	binder         descriptor.Binder
	mesh           *mesh.Mesh
	uniformBuffers []*gpu.Buffer
	camera         Camera

	// initErr may carry work abandoned by a failed fence wait.
	initErr error
}

func (v *Viewer) Run() error {
	err := v.initWindow()
	if err != nil {
		return err
	}

	err = v.initVulkan()
	defer v.cleanup()
	if err != nil {
		v.initErr = err
		return err
	}

	return v.mainLoop()
}

func (v *Viewer) initWindow() error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return err
	}

	window, err := sdl.CreateWindow("meshview", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(v.config.Window.Width), int32(v.config.Window.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return err
	}
	v.window = window

	v.loader, err = core.CreateLoaderFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return err
	}

	return nil
}

func (v *Viewer) initVulkan() error {
	steps := []func() error{
		v.createInstance,
		v.setupDebugMessenger,
		v.createSurface,
		v.pickPhysicalDevice,
		v.createLogicalDevice,
		v.createCommandPool,
		v.createSwapchain,
		v.createImageViews,
		v.createRenderPass,
		v.createDescriptorSetLayout,
		v.createGraphicsPipeline,
		v.createDepthResources,
		v.createFramebuffers,
		v.loadMesh,
		v.createUniformBuffers,
		v.bindMesh,
		v.createCommandBuffers,
		v.createSyncObjects,
	}

	for _, step := range steps {
		err := step()
		if err != nil {
			return err
		}
	}

	return nil
}

func (v *Viewer) loadMesh() error {
	v.binder = descriptor.Binder{FramesInFlight: v.config.FramesInFlight}

	var err error
	v.mesh, err = mesh.Load(v.gpu, v.config.Model)
	if err != nil {
		return err
	}

	err = v.mesh.LoadTexture(v.gpu, texture.FileDecoder{}, v.config.Texture, texture.SamplerOptions{
		MaxAnisotropy: v.config.MaxAnisotropy,
	})
	if err != nil {
		return err
	}

	v.camera = NewCamera(v.mesh.Geometry.Bounds())
	return nil
}

func (v *Viewer) bindMesh() error {
	var err error
	v.descriptorPool, err = v.binder.CreatePool(v.gpu)
	if err != nil {
		return err
	}

	return v.mesh.Bind(v.gpu, v.binder, v.descriptorPool, v.descriptorSetLayout, v.uniformBuffers)
}

func (v *Viewer) mainLoop() error {
	rendering := true

appLoop:
	for true {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				break appLoop
			case *sdl.KeyboardEvent:
				if e.Keysym.Sym == sdl.K_ESCAPE {
					break appLoop
				}
			case *sdl.WindowEvent:
				switch e.Event {
				case sdl.WINDOWEVENT_MINIMIZED:
					rendering = false
				case sdl.WINDOWEVENT_RESTORED:
					rendering = true
				case sdl.WINDOWEVENT_RESIZED:
					w, h := v.window.GetSize()
					if w > 0 && h > 0 {
						rendering = true
						err := v.recreateSwapChain()
						if err != nil {
							return err
						}
					} else {
						rendering = false
					}
				}
			}
		}
		if rendering {
			err := v.drawFrame()
			if err != nil {
				return err
			}
		}
	}

	_, err := v.device.WaitIdle()
	return err
}

func (v *Viewer) cleanup() {
	if v.device != nil {
		v.device.WaitIdle()
	}
	gpu.Abandon(v.initErr)

	v.cleanupSwapChain()

	if v.mesh != nil {
		v.mesh.Cleanup(v.gpu)
	}

	for _, buffer := range v.uniformBuffers {
		buffer.Destroy(v.gpu)
	}
	v.uniformBuffers = nil

	if v.descriptorPool != nil {
		v.descriptorPool.Destroy(nil)
	}

	if v.descriptorSetLayout != nil {
		v.descriptorSetLayout.Destroy(nil)
	}

	for _, fence := range v.inFlightFence {
		fence.Destroy(nil)
	}

	for _, semaphore := range v.renderFinishedSemaphore {
		semaphore.Destroy(nil)
	}

	for _, semaphore := range v.imageAvailableSemaphore {
		semaphore.Destroy(nil)
	}

	if v.commandPool != nil {
		v.commandPool.Destroy(nil)
	}

	if v.device != nil {
		v.device.Destroy(nil)
	}

	if v.debugMessenger != nil {
		v.debugMessenger.Destroy(nil)
	}

	if v.surface != nil {
		v.surface.Destroy(nil)
	}

	if v.instance != nil {
		v.instance.Destroy(nil)
	}

	if v.window != nil {
		v.window.Destroy()
	}
	sdl.Quit()
}
