package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameStageMonotonic(t *testing.T) {
	stage := FrameStageShadow
	seen := map[FrameStage]bool{stage: true}
	for i := 0; i < 5; i++ {
		next := stage.Next()
		require.True(t, next > stage, "stage %s went back to %s", stage, next)
		require.False(t, seen[next])
		seen[next] = true
		stage = next
	}
	assert.Equal(t, FrameStageSubmitted, stage)
	assert.True(t, stage.IsTerminal())
	assert.Equal(t, FrameStageSubmitted, stage.Next())
}

func TestParseFrameStage(t *testing.T) {
	for _, s := range FrameStages {
		have, ok := ParseFrameStage(s.String())
		require.True(t, ok)
		assert.Equal(t, s, have)
	}
	_, ok := ParseFrameStage("submitted")
	assert.False(t, ok)
}

func TestVertexLayout(t *testing.T) {
	l := NewVertexLayout(
		ShaderAttribute{Name: "in_position", Type: ShaderAttribTypeFloat32_3},
		ShaderAttribute{Name: "in_texcoord", Type: ShaderAttribTypeFloat32_2},
	)
	assert.Equal(t, uint32(20), l.Stride)
	assert.Equal(t, uint32(12), l.Attributes[1].Offset)
	assert.Equal(t, uint32(1), l.Attributes[1].Location)
	assert.True(t, l.Validate())

	l.Attributes[1].Offset = 16
	assert.False(t, l.Validate())
	assert.False(t, VertexLayout{}.Validate())
}

func TestClearValues(t *testing.T) {
	rp := &RenderPass{RenderPassConfig: RenderPassConfig{
		Depth: 1,
		Attachments: []RenderTargetAttachmentConfig{
			{Format: FormatRGBA16Float},
			{Format: FormatD32Float},
		},
	}}
	rp.ClearColour.W = 1

	cv := rp.ClearValues()
	require.Len(t, cv, 2)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cv[0].Colour)
	assert.Equal(t, float32(1), cv[1].Depth)
}

func TestFormatIsSRGB(t *testing.T) {
	assert.True(t, FormatBGRA8SRGB.IsSRGB())
	assert.True(t, FormatRGBA8SRGB.IsSRGB())
	assert.False(t, FormatBGRA8Unorm.IsSRGB())
	assert.False(t, FormatRGBA16Float.IsSRGB())
}

func TestFormat(t *testing.T) {
	assert.True(t, FormatD32Float.IsDepth())
	assert.False(t, FormatRGBA16Float.IsDepth())
	f, ok := ParseFormat("bgra8_srgb")
	require.True(t, ok)
	assert.Equal(t, FormatBGRA8SRGB, f)
}
