package texture_test

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/vkngwrapper/meshes/texture"
)

func TestFileDecoderPNG(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(2, 1, color.NRGBA{B: 255, A: 255})

	path := filepath.Join(t.TempDir(), "tiny.png")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	err = png.Encode(file, src)
	file.Close()
	if err != nil {
		t.Fatal(err)
	}

	raw, err := texture.FileDecoder{}.Decode(path)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw.Width != 3 || raw.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", raw.Width, raw.Height)
	}
	if len(raw.Pixels) != 3*2*4 {
		t.Fatalf("len(Pixels) = %d, want %d", len(raw.Pixels), 3*2*4)
	}

	first := raw.Pixels[0:4]
	if first[0] != 255 || first[1] != 0 || first[2] != 0 || first[3] != 255 {
		t.Errorf("pixel (0,0) = %v, want opaque red", first)
	}
	last := raw.Pixels[(1*3+2)*4:]
	if last[0] != 0 || last[1] != 0 || last[2] != 255 || last[3] != 255 {
		t.Errorf("pixel (2,1) = %v, want opaque blue", last[:4])
	}

	raw.Release()
	if raw.Pixels != nil {
		t.Errorf("Release kept the pixels")
	}
}

func TestFileDecoderErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("definitely not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{garbage, filepath.Join(dir, "missing.png")} {
		if _, err := (texture.FileDecoder{}).Decode(path); err == nil {
			t.Errorf("decode %s succeeded", filepath.Base(path))
		}
	}
}

func TestFileDecoderChannels(t *testing.T) {
	opaquePalette := color.Palette{color.NRGBA{R: 255, A: 255}, color.NRGBA{G: 255, A: 255}}
	clearPalette := color.Palette{color.NRGBA{R: 255, A: 255}, color.NRGBA{}}

	gray := image.NewGray(image.Rect(0, 0, 2, 2))

	paletted := image.NewPaletted(image.Rect(0, 0, 2, 2), opaquePalette)
	paletted.SetColorIndex(1, 1, 1)

	transparentPaletted := image.NewPaletted(image.Rect(0, 0, 2, 2), clearPalette)
	transparentPaletted.SetColorIndex(1, 1, 1)

	opaque := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	draw.Draw(opaque, opaque.Bounds(), image.NewUniform(color.NRGBA{B: 200, A: 255}), image.Point{}, draw.Src)

	translucent := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	translucent.Set(0, 0, color.NRGBA{R: 10, A: 128})

	testCases := []struct {
		name string
		img  image.Image
		want int
	}{
		{name: "gray", img: gray, want: 1},
		{name: "opaque palette", img: paletted, want: 3},
		{name: "palette with transparency", img: transparentPaletted, want: 4},
		{name: "opaque color", img: opaque, want: 3},
		{name: "translucent color", img: translucent, want: 4},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "image.png")
			file, err := os.Create(path)
			if err != nil {
				t.Fatal(err)
			}
			err = png.Encode(file, testCase.img)
			file.Close()
			if err != nil {
				t.Fatal(err)
			}

			raw, err := texture.FileDecoder{}.Decode(path)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if raw.Channels != testCase.want {
				t.Errorf("channels = %d, want %d", raw.Channels, testCase.want)
			}
			if len(raw.Pixels) != 2*2*4 {
				t.Errorf("len(Pixels) = %d, want 16", len(raw.Pixels))
			}
		})
	}
}
