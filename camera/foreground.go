package camera

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// UpdateForeground segments the frame with the background model and
// refreshes the foreground mask and binary difference.  The frame is kept
// for colour sampling
func (v *View) UpdateForeground(frame image.Image) error {

	if err := v.checkBounds(frame); err != nil {
		return fmt.Errorf("camera %d frame: %w", v.id, err)
	}

	if v.bg == nil {
		return fmt.Errorf("camera %d: %w", v.id, ErrNoBackgroundModel)
	}

	mask, err := v.bg.Apply(frame)

	if err != nil {
		return fmt.Errorf("camera %d background model: %w", v.id, err)
	}

	if err := v.SetForeground(mask); err != nil {
		return err
	}

	v.frame = toRGBA(frame, v.frame)

	return nil
}

// SetForeground replaces the foreground mask, any non-zero value is treated
// as foreground.  The binary difference becomes the XOR of the new and the
// previous mask, or the mask itself on the first call
func (v *View) SetForeground(mask *image.Gray) error {

	if mask == nil {
		return fmt.Errorf("camera %d mask: %w", v.id, ErrEmptyFrame)
	}

	if err := v.checkBounds(mask); err != nil {
		return fmt.Errorf("camera %d mask: %w", v.id, err)
	}

	w, h := v.size.X, v.size.Y
	next := image.NewGray(image.Rect(0, 0, w, h))

	if v.difference == nil {
		v.difference = image.NewGray(next.Rect)
	}

	for y := 0; y < h; y++ {

		src := mask.Pix[mask.PixOffset(mask.Rect.Min.X, mask.Rect.Min.Y+y):]
		row := y * w

		for x := 0; x < w; x++ {

			var on uint8
			if src[x] != 0 {
				on = 255
			}

			next.Pix[row+x] = on

			if v.foreground == nil {
				v.difference.Pix[row+x] = on
			} else {
				v.difference.Pix[row+x] = on ^ v.foreground.Pix[row+x]
			}
		}
	}

	v.foreground = next

	return nil
}

// SetFrame stores the colour frame used for sampling without touching the
// foreground state
func (v *View) SetFrame(frame image.Image) error {

	if err := v.checkBounds(frame); err != nil {
		return fmt.Errorf("camera %d frame: %w", v.id, err)
	}

	v.frame = toRGBA(frame, v.frame)

	return nil
}

// Frame returns the last frame given to the view
func (v *View) Frame() *image.RGBA {
	return v.frame
}

// Foreground returns the current foreground mask
func (v *View) Foreground() *image.Gray {
	return v.foreground
}

// Difference returns the XOR of the current and the previous foreground mask
func (v *View) Difference() *image.Gray {
	return v.difference
}

// checkBounds validates an image against the calibrated size
func (v *View) checkBounds(img image.Image) error {

	if img == nil || img.Bounds().Empty() {
		return ErrEmptyFrame
	}

	if img.Bounds().Size() != v.size {
		return fmt.Errorf("%w: got %v want %v", ErrSizeMismatch,
			img.Bounds().Size(), v.size)
	}

	return nil
}

// toRGBA copies img into dst, reusing dst when it has the right size
func toRGBA(img image.Image, dst *image.RGBA) *image.RGBA {

	b := img.Bounds()

	if dst == nil || dst.Rect.Size() != b.Size() {
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}

	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)

	return dst
}
