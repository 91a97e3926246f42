package main

import (
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/meshes/gpu"
)

type SwapChainSupportDetails struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (v *Viewer) querySwapChainSupport(device core1_0.PhysicalDevice) (SwapChainSupportDetails, error) {
	var details SwapChainSupportDetails
	var err error

	details.Capabilities, _, err = v.surface.PhysicalDeviceSurfaceCapabilities(device)
	if err != nil {
		return details, err
	}

	details.Formats, _, err = v.surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return details, err
	}

	details.PresentModes, _, err = v.surface.PhysicalDeviceSurfacePresentModes(device)
	return details, err
}

func chooseSwapSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// swapExtent uses the surface's current extent when it has one, and otherwise
// the window's drawable size clamped to what the surface allows.
func swapExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(drawableWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(drawableHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func (v *Viewer) createSwapchain() error {
	v.swapchainExtension = khr_swapchain.CreateExtensionFromDevice(v.device)

	swapchainSupport, err := v.querySwapChainSupport(v.physicalDevice)
	if err != nil {
		return err
	}

	surfaceFormat := chooseSwapSurfaceFormat(swapchainSupport.Formats)
	presentMode := chooseSwapPresentMode(swapchainSupport.PresentModes)
	drawableWidth, drawableHeight := v.window.VulkanGetDrawableSize()
	extent := swapExtent(swapchainSupport.Capabilities, int(drawableWidth), int(drawableHeight))

	imageCount := swapchainSupport.Capabilities.MinImageCount + 1
	if swapchainSupport.Capabilities.MaxImageCount > 0 && swapchainSupport.Capabilities.MaxImageCount < imageCount {
		imageCount = swapchainSupport.Capabilities.MaxImageCount
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int

	if *v.queues.GraphicsFamily != *v.queues.PresentFamily {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = append(queueFamilyIndices, *v.queues.GraphicsFamily, *v.queues.PresentFamily)
	}

	swapchain, _, err := v.swapchainExtension.CreateSwapchain(v.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: v.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   swapchainSupport.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return err
	}
	v.swapchainExtent = extent
	v.swapchain = swapchain
	v.swapchainImageFormat = surfaceFormat.Format

	return nil
}

func (v *Viewer) createImageViews() error {
	images, _, err := v.swapchain.SwapchainImages()
	if err != nil {
		return err
	}
	v.swapchainImages = images

	var imageViews []core1_0.ImageView
	for _, image := range images {
		view, _, err := v.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
			Image:    image,
			ViewType: core1_0.ImageViewType2D,
			Format:   v.swapchainImageFormat,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		})
		if err != nil {
			return err
		}

		imageViews = append(imageViews, view)
	}
	v.swapchainImageViews = imageViews

	v.imagesInFlight = make([]core1_0.Fence, len(images))
	return nil
}

func (v *Viewer) createRenderPass() error {
	depthFormat, err := v.gpu.DepthFormat()
	if err != nil {
		return err
	}

	renderPass, _, err := v.device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         v.swapchainImageFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         depthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return err
	}

	v.renderPass = renderPass
	return nil
}

func (v *Viewer) createDepthResources() error {
	depthFormat, err := v.gpu.DepthFormat()
	if err != nil {
		return err
	}

	v.depth, err = gpu.NewDepthTarget(v.gpu, v.swapchainExtent.Width, v.swapchainExtent.Height, depthFormat)
	return err
}

func (v *Viewer) createFramebuffers() error {
	for _, imageView := range v.swapchainImageViews {
		framebuffer, _, err := v.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: v.renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				imageView,
				v.depth.View,
			},
			Width:  v.swapchainExtent.Width,
			Height: v.swapchainExtent.Height,
		})
		if err != nil {
			return err
		}

		v.swapchainFramebuffers = append(v.swapchainFramebuffers, framebuffer)
	}

	return nil
}

func (v *Viewer) cleanupSwapChain() {
	v.depth.Destroy(v.gpu)
	v.depth = nil

	for _, framebuffer := range v.swapchainFramebuffers {
		framebuffer.Destroy(nil)
	}
	v.swapchainFramebuffers = nil

	if v.graphicsPipeline != nil {
		v.graphicsPipeline.Destroy(nil)
		v.graphicsPipeline = nil
	}

	if v.pipelineLayout != nil {
		v.pipelineLayout.Destroy(nil)
		v.pipelineLayout = nil
	}

	if v.renderPass != nil {
		v.renderPass.Destroy(nil)
		v.renderPass = nil
	}

	for _, imageView := range v.swapchainImageViews {
		imageView.Destroy(nil)
	}
	v.swapchainImageViews = nil

	if v.swapchain != nil {
		v.swapchain.Destroy(nil)
		v.swapchain = nil
	}
}

func (v *Viewer) recreateSwapChain() error {
	w, h := v.window.VulkanGetDrawableSize()
	if w == 0 || h == 0 {
		return nil
	}
	if (v.window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0 {
		return nil
	}

	_, err := v.device.WaitIdle()
	if err != nil {
		return err
	}

	v.cleanupSwapChain()

	steps := []func() error{
		v.createSwapchain,
		v.createImageViews,
		v.createRenderPass,
		v.createGraphicsPipeline,
		v.createDepthResources,
		v.createFramebuffers,
	}
	for _, step := range steps {
		err = step()
		if err != nil {
			return err
		}
	}

	return nil
}
