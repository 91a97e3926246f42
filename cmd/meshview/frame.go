package main

import (
	"bytes"
	"encoding/binary"

	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
	"github.com/vkngwrapper/meshes/gpu"
)

func (v *Viewer) createUniformBuffers() error {
	bufferSize := binary.Size(UniformBufferObject{})

	for i := 0; i < v.config.FramesInFlight; i++ {
		buffer, err := gpu.NewBuffer(v.gpu, bufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return err
		}

		v.uniformBuffers = append(v.uniformBuffers, buffer)
	}

	return nil
}

func (v *Viewer) createCommandBuffers() error {
	buffers, _, err := v.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        v.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: v.config.FramesInFlight,
	})
	if err != nil {
		return err
	}

	v.commandBuffers = buffers
	return nil
}

func (v *Viewer) createSyncObjects() error {
	for i := 0; i < v.config.FramesInFlight; i++ {
		semaphore, _, err := v.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}

		v.imageAvailableSemaphore = append(v.imageAvailableSemaphore, semaphore)

		semaphore, _, err = v.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			return err
		}

		v.renderFinishedSemaphore = append(v.renderFinishedSemaphore, semaphore)

		fence, _, err := v.device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			return err
		}

		v.inFlightFence = append(v.inFlightFence, fence)
	}

	return nil
}

func (v *Viewer) recordCommandBuffer(buffer core1_0.CommandBuffer, imageIndex int) error {
	_, err := buffer.Reset(0)
	if err != nil {
		return err
	}

	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return err
	}

	err = buffer.CmdBeginRenderPass(core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  v.renderPass,
			Framebuffer: v.swapchainFramebuffers[imageIndex],
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: v.swapchainExtent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat{0, 0, 0, 1},
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return err
	}

	buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, v.graphicsPipeline)
	err = v.mesh.RecordDraw(buffer, v.pipelineLayout, v.currentFrame)
	if err != nil {
		return err
	}
	buffer.CmdEndRenderPass()

	_, err = buffer.End()
	return err
}

func (v *Viewer) drawFrame() error {
	fences := []core1_0.Fence{v.inFlightFence[v.currentFrame]}

	_, err := v.device.WaitForFences(true, common.NoTimeout, fences)
	if err != nil {
		return err
	}

	imageIndex, res, err := v.swapchain.AcquireNextImage(common.NoTimeout, v.imageAvailableSemaphore[v.currentFrame], nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return v.recreateSwapChain()
	} else if err != nil {
		return err
	}

	if v.imagesInFlight[imageIndex] != nil {
		_, err := v.imagesInFlight[imageIndex].Wait(common.NoTimeout)
		if err != nil {
			return err
		}
	}
	v.imagesInFlight[imageIndex] = v.inFlightFence[v.currentFrame]

	_, err = v.device.ResetFences(fences)
	if err != nil {
		return err
	}

	err = v.updateUniformBuffer(v.currentFrame)
	if err != nil {
		return err
	}

	commandBuffer := v.commandBuffers[v.currentFrame]
	err = v.recordCommandBuffer(commandBuffer, imageIndex)
	if err != nil {
		return err
	}

	_, err = v.graphicsQueue.Submit(v.inFlightFence[v.currentFrame], []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{v.imageAvailableSemaphore[v.currentFrame]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{commandBuffer},
			SignalSemaphores: []core1_0.Semaphore{v.renderFinishedSemaphore[v.currentFrame]},
		},
	})
	if err != nil {
		return err
	}

	res, err = v.swapchainExtension.QueuePresent(v.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{v.renderFinishedSemaphore[v.currentFrame]},
		Swapchains:     []khr_swapchain.Swapchain{v.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		err = v.recreateSwapChain()
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	v.currentFrame = (v.currentFrame + 1) % v.config.FramesInFlight

	return nil
}

func (v *Viewer) updateUniformBuffer(frame int) error {
	aspectRatio := float32(v.swapchainExtent.Width) / float32(v.swapchainExtent.Height)
	ubo := v.camera.Uniforms(hrtime.Now().Seconds(), aspectRatio)

	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, &ubo)
	if err != nil {
		return err
	}

	return v.uniformBuffers[frame].Write(v.gpu, buf.Bytes())
}
