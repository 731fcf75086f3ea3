package watermark

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrShapeMismatch is matched by ShapeMismatchError.
	ErrShapeMismatch = errors.New("alpha map shape mismatch")
	// ErrFootprintOutOfBounds is matched by FootprintOutOfBoundsError.
	ErrFootprintOutOfBounds = errors.New("watermark footprint out of bounds")
	// ErrCalibrationMismatch is matched by CalibrationMismatchError.
	ErrCalibrationMismatch = errors.New("calibration captures differ in size")
	// ErrInvalidAlpha reports an alpha coefficient outside [0, 1].
	ErrInvalidAlpha = errors.New("alpha value out of range")
	// ErrNilImage is returned when a nil image is passed to an operation.
	ErrNilImage = errors.New("nil image provided")
)

// ShapeMismatchError reports an alpha map whose dimensions disagree with the
// resolved watermark footprint.
type ShapeMismatchError struct {
	Size WatermarkSize
	Got  image.Point
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("alpha map is %dx%d, %s footprint needs %dx%d",
		e.Got.X, e.Got.Y, e.Size.Variant, e.Size.Width, e.Size.Height)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// FootprintOutOfBoundsError reports an image too small to hold the footprint
// plus its margin.
type FootprintOutOfBoundsError struct {
	Size   WatermarkSize
	Bounds image.Rectangle
}

func (e *FootprintOutOfBoundsError) Error() string {
	return fmt.Sprintf("%s footprint %dx%d with margin %d does not fit image %dx%d",
		e.Size.Variant, e.Size.Width, e.Size.Height, e.Size.Margin, e.Bounds.Dx(), e.Bounds.Dy())
}

func (e *FootprintOutOfBoundsError) Is(target error) bool { return target == ErrFootprintOutOfBounds }

// CalibrationMismatchError reports two calibration captures of different sizes.
type CalibrationMismatchError struct {
	First  image.Point
	Second image.Point
}

func (e *CalibrationMismatchError) Error() string {
	return fmt.Sprintf("calibration captures differ: %dx%d vs %dx%d",
		e.First.X, e.First.Y, e.Second.X, e.Second.Y)
}

func (e *CalibrationMismatchError) Is(target error) bool { return target == ErrCalibrationMismatch }
