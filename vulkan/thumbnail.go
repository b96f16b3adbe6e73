// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vulkan

import (
	"bytes"
	"context"
	eb "encoding/binary"
	"image"
	"image/jpeg"
	"math"

	"github.com/pkg/errors"

	"github.com/deM-on/renderdoc/config"
	"github.com/deM-on/renderdoc/driver"
	"github.com/deM-on/renderdoc/resource"
)

const thumbnailMaxSize = 1024

// captureThumbnail reads the backbuffer back through a transient
// linear-tiled image, point-samples it down to at most 1024 pixels wide and
// encodes it as a JPEG for the log header.
func (w *Wrapped) captureThumbnail(ctx context.Context, backbuffer driver.Image, swapInfo *resource.SwapchainInfo) ([]byte, error) {
	d := w.device

	if err := d.DeviceWaitIdle(); err != nil {
		return nil, err
	}

	// transient objects only live for this scope, so they are never wrapped
	readbackIm, err := d.CreateImage(driver.ImageCreateInfo{
		Format:       swapInfo.Format,
		Extent:       swapInfo.Extent,
		MipLevels:    1,
		ArrayLayers:  1,
		LinearTiling: true,
		Layout:       driver.LayoutUndefined,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating readback image")
	}
	defer d.DestroyImage(readbackIm)

	size := uint64(swapInfo.Extent.Width) * uint64(swapInfo.Extent.Height) * uint64(swapInfo.Format.BytesPerPixel())
	readbackMem, err := d.AllocMemory(size, true)
	if err != nil {
		return nil, errors.Wrap(err, "allocating readback memory")
	}
	defer d.FreeMemory(readbackMem)

	if err := d.BindImageMemory(readbackIm, readbackMem, 0); err != nil {
		return nil, err
	}
	layout := d.GetImageSubresourceLayout(readbackIm)

	cmd, err := w.GetNextCmd(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.BeginCommandBuffer(cmd); err != nil {
		return nil, err
	}

	fullRange := driver.SubresourceRange{LevelCount: 1, LayerCount: 1}
	d.CmdPipelineBarrier(cmd, []driver.ImageMemoryBarrier{
		{OldLayout: driver.LayoutPresentSource, NewLayout: driver.LayoutTransferSrc, Image: backbuffer, Range: fullRange},
		{OldLayout: driver.LayoutUndefined, NewLayout: driver.LayoutTransferDst, Image: readbackIm, Range: fullRange},
	})
	d.CmdCopyImage(cmd, backbuffer, driver.LayoutTransferSrc, readbackIm, driver.LayoutTransferDst,
		[]driver.ImageCopy{{Extent: swapInfo.Extent}})
	// transition the backbuffer back
	d.CmdPipelineBarrier(cmd, []driver.ImageMemoryBarrier{
		{OldLayout: driver.LayoutTransferSrc, NewLayout: driver.LayoutPresentSource, Image: backbuffer, Range: fullRange},
		{OldLayout: driver.LayoutTransferDst, NewLayout: driver.LayoutGeneral, Image: readbackIm, Range: fullRange},
	})

	if err := d.EndCommandBuffer(cmd); err != nil {
		return nil, err
	}

	w.SubmitCmds(ctx)
	w.FlushQ(ctx) // need to wait so we can read back

	data, err := d.MapMemory(readbackMem)
	if err != nil {
		return nil, errors.Wrap(err, "mapping readback memory")
	}
	defer d.UnmapMemory(readbackMem)

	pixels, thWidth, thHeight := pointSample(data[layout.Offset:], swapInfo.Format, swapInfo.Extent, layout.RowPitch)

	img := image.NewRGBA(image.Rect(0, 0, int(thWidth), int(thHeight)))
	for y := 0; y < int(thHeight); y++ {
		for x := 0; x < int(thWidth); x++ {
			src := (y*int(thWidth) + x) * 3
			dst := img.PixOffset(x, y)
			img.Pix[dst+0] = pixels[src+0]
			img.Pix[dst+1] = pixels[src+1]
			img.Pix[dst+2] = pixels[src+2]
			img.Pix[dst+3] = 0xff
		}
	}

	out := &bytes.Buffer{}
	quality := config.Get().ThumbnailQuality
	if quality == 0 {
		quality = 40
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, errors.Wrap(err, "encoding thumbnail")
	}
	return out.Bytes(), nil
}

// pointSample shrinks the raw backbuffer bytes down to a thumbnail-sized
// RGB8 buffer, converting per source format.
func pointSample(data []byte, format driver.Format, extent driver.Extent2D, rowPitch uint64) ([]byte, uint32, uint32) {
	widthf := float32(extent.Width)
	heightf := float32(extent.Height)
	aspect := widthf / heightf

	thWidth := uint32(thumbnailMaxSize)
	if extent.Width < thWidth {
		thWidth = extent.Width
	}
	thWidth &^= 0x7 // align down to a multiple of 8
	if thWidth == 0 {
		thWidth = 8
	}
	thHeight := uint32(float32(thWidth) / aspect)
	if thHeight == 0 {
		thHeight = 1
	}

	stride := format.BytesPerPixel()
	out := make([]byte, 3*thWidth*thHeight)
	dst := 0

	for y := uint32(0); y < thHeight; y++ {
		for x := uint32(0); x < thWidth; x++ {
			xf := float32(x) / float32(thWidth)
			yf := float32(y) / float32(thHeight)

			src := uint64(stride)*uint64(xf*widthf) + rowPitch*uint64(yf*heightf)
			if src+uint64(stride) > uint64(len(data)) {
				dst += 3
				continue
			}
			px := data[src:]

			switch format {
			case driver.FormatR10G10B10A2Unorm:
				packed := eb.LittleEndian.Uint32(px)
				out[dst+0] = byte(float32(packed&0x3ff) / 1023.0 * 255.0)
				out[dst+1] = byte(float32((packed>>10)&0x3ff) / 1023.0 * 255.0)
				out[dst+2] = byte(float32((packed>>20)&0x3ff) / 1023.0 * 255.0)
			case driver.FormatB8G8R8A8Unorm:
				out[dst+0] = px[2]
				out[dst+1] = px[1]
				out[dst+2] = px[0]
			case driver.FormatR16G16B16A16Float:
				out[dst+0] = srgb8(halfToFloat(eb.LittleEndian.Uint16(px[0:])))
				out[dst+1] = srgb8(halfToFloat(eb.LittleEndian.Uint16(px[2:])))
				out[dst+2] = srgb8(halfToFloat(eb.LittleEndian.Uint16(px[4:])))
			default:
				out[dst+0] = px[0]
				out[dst+1] = px[1]
				out[dst+2] = px[2]
			}
			dst += 3
		}
	}
	return out, thWidth, thHeight
}

// srgb8 clamps a linear value and gamma-encodes it to an 8 bit sRGB byte.
func srgb8(linear float32) byte {
	if linear < 0 {
		linear = 0
	} else if linear > 1 {
		linear = 1
	}
	if linear < 0.0031308 {
		return byte(255.0 * (12.92 * linear))
	}
	return byte(255.0 * (1.055*float32(math.Pow(float64(linear), 1.0/2.4)) - 0.055))
}

// halfToFloat expands an IEEE 754 half-precision value.
func halfToFloat(h uint16) float32 {
	sign := uint32(h>>15) & 1
	exp := uint32(h>>10) & 0x1f
	mant := uint32(h) & 0x3ff

	var bits uint32
	switch {
	case exp == 0 && mant == 0:
		bits = sign << 31
	case exp == 0:
		// subnormal; normalize
		e := uint32(127 - 15 + 1)
		for mant&0x400 == 0 {
			mant <<= 1
			e--
		}
		mant &= 0x3ff
		bits = sign<<31 | e<<23 | mant<<13
	case exp == 0x1f:
		bits = sign<<31 | 0xff<<23 | mant<<13
	default:
		bits = sign<<31 | (exp-15+127)<<23 | mant<<13
	}
	return math.Float32frombits(bits)
}
