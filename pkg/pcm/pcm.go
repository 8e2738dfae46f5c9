// Package pcm converts between the interleaved integer PCM byte buffers
// types.AudioDecoder/encoders work in and the planar float32 buffers the
// realtime mixing graph works in (§3 "QueueBufferSlot", §4.6).
package pcm

// InterleavedInt16ToPlanarFloat32 unpacks little-endian 16-bit interleaved
// PCM into channelCount planar float32 slices scaled to [-1, 1].
func InterleavedInt16ToPlanarFloat32(in []byte, channelCount int, dst [][]float32) int {
	bytesPerFrame := channelCount * 2
	frames := len(in) / bytesPerFrame
	for ch := 0; ch < channelCount && ch < len(dst); ch++ {
		if len(dst[ch]) < frames {
			frames = len(dst[ch])
		}
	}
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channelCount; ch++ {
			off := f*bytesPerFrame + ch*2
			v := int16(uint16(in[off]) | uint16(in[off+1])<<8)
			dst[ch][f] = float32(v) / 32768.0
		}
	}
	return frames
}

// PlanarFloat32ToInterleavedInt16 packs channelCount planar float32
// buffers (each scaled to [-1, 1]) into little-endian 16-bit interleaved
// PCM bytes, clamping out-of-range samples.
func PlanarFloat32ToInterleavedInt16(src [][]float32, nFrames int) []byte {
	channelCount := len(src)
	out := make([]byte, nFrames*channelCount*2)
	for f := 0; f < nFrames; f++ {
		for ch := 0; ch < channelCount; ch++ {
			s := src[ch][f]
			if s > 1 {
				s = 1
			} else if s < -1 {
				s = -1
			}
			v := int16(s * 32767.0)
			off := f*channelCount*2 + ch*2
			out[off] = byte(v)
			out[off+1] = byte(v >> 8)
		}
	}
	return out
}

// BytesPerSampleForDepth returns the byte width of one sample at the given
// bit depth (8/16/24/32).
func BytesPerSampleForDepth(bitsPerSample int) int {
	return bitsPerSample / 8
}

// InterleavedToPlanarFloat32 unpacks little-endian interleaved PCM at an
// arbitrary supported bit depth (8/16/24/32) into planar float32 in [-1,1].
func InterleavedToPlanarFloat32(in []byte, channelCount, bitsPerSample int, dst [][]float32) int {
	bytesPerSample := BytesPerSampleForDepth(bitsPerSample)
	bytesPerFrame := channelCount * bytesPerSample
	if bytesPerFrame == 0 {
		return 0
	}
	frames := len(in) / bytesPerFrame
	for ch := 0; ch < channelCount && ch < len(dst); ch++ {
		if len(dst[ch]) < frames {
			frames = len(dst[ch])
		}
	}
	maxVal := float64(int64(1) << uint(bitsPerSample-1))
	for f := 0; f < frames; f++ {
		for ch := 0; ch < channelCount; ch++ {
			off := f*bytesPerFrame + ch*bytesPerSample
			var v int64
			for b := 0; b < bytesPerSample; b++ {
				v |= int64(in[off+b]) << uint(8*b)
			}
			signBit := int64(1) << uint(bitsPerSample-1)
			if v&signBit != 0 {
				v -= int64(1) << uint(bitsPerSample)
			}
			dst[ch][f] = float32(float64(v) / maxVal)
		}
	}
	return frames
}
