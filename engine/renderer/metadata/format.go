package metadata

/** @brief Pixel formats understood by every backend. */
type Format uint32

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatRGBA8SRGB
	FormatBGRA8Unorm
	FormatBGRA8SRGB
	FormatRGBA16Float
	FormatRGBA32Float
	FormatD32Float
	FormatD24UnormS8Uint
	FormatD32FloatS8Uint
)

var formatNames = map[Format]string{
	FormatUndefined:      "undefined",
	FormatRGBA8Unorm:     "rgba8_unorm",
	FormatRGBA8SRGB:      "rgba8_srgb",
	FormatBGRA8Unorm:     "bgra8_unorm",
	FormatBGRA8SRGB:      "bgra8_srgb",
	FormatRGBA16Float:    "rgba16_float",
	FormatRGBA32Float:    "rgba32_float",
	FormatD32Float:       "d32_float",
	FormatD24UnormS8Uint: "d24_unorm_s8_uint",
	FormatD32FloatS8Uint: "d32_float_s8_uint",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

// IsDepth reports whether the format has a depth aspect.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD32Float, FormatD24UnormS8Uint, FormatD32FloatS8Uint:
		return true
	}
	return false
}

// Size is the number of bytes per texel, 0 for undefined.
func (f Format) Size() int {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8SRGB, FormatBGRA8Unorm, FormatBGRA8SRGB, FormatD32Float, FormatD24UnormS8Uint:
		return 4
	case FormatRGBA16Float, FormatD32FloatS8Uint:
		return 8
	case FormatRGBA32Float:
		return 16
	}
	return 0
}

// IsSRGB reports whether writes to the format are sRGB encoded by the device.
func (f Format) IsSRGB() bool {
	return f == FormatRGBA8SRGB || f == FormatBGRA8SRGB
}

func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32FloatS8Uint
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, bool) {
	for f, name := range formatNames {
		if name == s {
			return f, true
		}
	}
	return FormatUndefined, false
}

/** @brief How an image may be used. Can be combined. */
type ImageUsage uint32

const (
	ImageUsageColorAttachment ImageUsage = 1 << iota
	ImageUsageDepthAttachment
	ImageUsageSampled
	ImageUsageTransferSrc
	ImageUsageTransferDst
	ImageUsagePresent
)

func (u ImageUsage) Has(flags ImageUsage) bool {
	return u&flags == flags
}

/** @brief Image layouts an attachment moves through during a render pass. */
type ImageLayout uint32

const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutColorAttachment
	ImageLayoutDepthAttachment
	ImageLayoutShaderReadOnly
	ImageLayoutTransferSrc
	ImageLayoutTransferDst
	ImageLayoutPresentSrc
)
