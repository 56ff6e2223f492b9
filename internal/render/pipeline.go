package render

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_dynamic_rendering"
)

// LoadShaderWords reads a compiled SPIR-V blob from disk. The bytes are
// opaque apart from the container checks: the file must exist, be
// non-empty, and hold a whole number of 32-bit words. Shaders are
// compiled by shaders/compile.sh ahead of time; a failure here means
// that step was skipped or produced garbage.
func LoadShaderWords(path string) ([]uint32, error) {
	shaderBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read shader %s", path), ErrShaderLoad)
	}

	if len(shaderBytes) == 0 {
		return nil, errors.Mark(errors.Newf("shader %s is empty", path), ErrShaderLoad)
	}

	if len(shaderBytes)%4 != 0 {
		return nil, errors.Mark(errors.Newf("shader %s is truncated: %d bytes", path, len(shaderBytes)), ErrShaderLoad)
	}

	return bytesToBytecode(shaderBytes), nil
}

func bytesToBytecode(bytes []byte) []uint32 {
	byteCode := make([]uint32, len(bytes)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(bytes[byteIndex])
		byteCode[i] |= uint32(bytes[byteIndex+1]) << 8
		byteCode[i] |= uint32(bytes[byteIndex+2]) << 16
		byteCode[i] |= uint32(bytes[byteIndex+3]) << 24
	}

	return byteCode
}

// Pipeline is the single graphics pipeline the harness ever builds:
// the triangle's shader stages plus fixed-function state, with viewport
// and scissor left dynamic so the extent never bakes into the object.
type Pipeline struct {
	device core1_0.CoreDeviceDriver

	layout core1_0.PipelineLayout
	handle core1_0.Pipeline
	format core1_0.Format
}

// NewPipeline builds the pipeline state object targeting images of
// colorFormat. No render pass is involved; the output format is bound
// through the dynamic-rendering chain.
func NewPipeline(ctx *Context, vertCode, fragCode []uint32, colorFormat core1_0.Format) (*Pipeline, error) {
	vertShader, _, err := ctx.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: vertCode,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create vertex shader module")
	}
	defer ctx.deviceDriver.DestroyShaderModule(vertShader, nil)

	fragShader, _, err := ctx.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: fragCode,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create fragment shader module")
	}
	defer ctx.deviceDriver.DestroyShaderModule(fragShader, nil)

	pipeline := &Pipeline{
		device: ctx.deviceDriver,
		format: colorFormat,
	}

	pipeline.layout, _, err = ctx.deviceDriver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	// The triangle lives in the vertex shader, so vertex input stays empty.
	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	// Counts only; the values are supplied at record time.
	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{{}},
		Scissors:  []core1_0.Rect2D{{}},
	}

	dynamicState := &core1_0.PipelineDynamicStateCreateInfo{
		DynamicStates: []core1_0.DynamicState{
			core1_0.DynamicStateViewport,
			core1_0.DynamicStateScissor,
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  false,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled: false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen |
					core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	pipelines, _, err := ctx.deviceDriver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			ColorBlendState:    colorBlend,
			DynamicState:       dynamicState,
			Layout:             pipeline.layout,

			Next: khr_dynamic_rendering.PipelineRenderingCreateInfo{
				ColorAttachmentFormats: []core1_0.Format{colorFormat},
			},

			BasePipelineIndex: -1,
		},
	)
	if err != nil {
		pipeline.Destroy()
		return nil, errors.Wrap(err, "create graphics pipeline")
	}

	pipeline.handle = pipelines[0]
	return pipeline, nil
}

// Format reports the color attachment format the pipeline was built for.
func (p *Pipeline) Format() core1_0.Format {
	return p.format
}

// Destroy releases the pipeline and its layout.
func (p *Pipeline) Destroy() {
	if p.handle.Initialized() {
		p.device.DestroyPipeline(p.handle, nil)
		p.handle = core1_0.Pipeline{}
	}

	if p.layout.Initialized() {
		p.device.DestroyPipelineLayout(p.layout, nil)
		p.layout = core1_0.PipelineLayout{}
	}
}
