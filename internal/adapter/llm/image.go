package llm

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	xdraw "golang.org/x/image/draw"
)

// PrepareImage downsizes an image so its longest side is at most maxDim,
// re-encoding it as JPEG. Images already within bounds are returned unchanged.
func PrepareImage(in ImageInput, maxDim int) (ImageInput, error) {
	if len(in.Data) == 0 {
		return ImageInput{}, fmt.Errorf("empty image")
	}
	if in.MIMEType == "" {
		in.MIMEType = "image/png"
	}
	if maxDim <= 0 {
		return in, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(in.Data))
	if err != nil {
		return ImageInput{}, fmt.Errorf("decode image config: %w", err)
	}
	maxSide := cfg.Width
	if cfg.Height > maxSide {
		maxSide = cfg.Height
	}
	if maxSide <= maxDim {
		return in, nil
	}

	img, _, err := image.Decode(bytes.NewReader(in.Data))
	if err != nil {
		return ImageInput{}, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	scale := float64(maxDim) / float64(maxSide)
	nw := int(math.Max(1, math.Round(float64(b.Dx())*scale)))
	nh := int(math.Max(1, math.Round(float64(b.Dy())*scale)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return ImageInput{}, fmt.Errorf("encode image: %w", err)
	}
	return ImageInput{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}
