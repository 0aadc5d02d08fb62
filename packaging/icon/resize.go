package icon

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/gravitational/trace"
	"golang.org/x/image/draw"
)

// ImageResizer resizes images in process. It is used where sips is unavailable.
type ImageResizer struct{}

func (ImageResizer) Resize(ctx context.Context, src, dst string, pixels int) (err error) {
	if err := ctx.Err(); err != nil {
		return trace.Wrap(err)
	}
	if pixels <= 0 {
		return trace.BadParameter("invalid icon size %d", pixels)
	}

	img, err := decode(src)
	if err != nil {
		return trace.Wrap(err)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, pixels, pixels))
	draw.CatmullRom.Scale(scaled, scaled.Rect, img, img.Bounds(), draw.Over, nil)

	out, err := os.Create(dst)
	if err != nil {
		return trace.Wrap(err)
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = trace.Wrap(closeErr)
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	return trace.Wrap(png.Encode(out, scaled))
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, trace.Wrap(err, "failed to decode %q", path)
	}
	return img, nil
}
