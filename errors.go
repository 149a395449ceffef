package pe

import "github.com/pkg/errors"

var (
	ErrInvalidPESize = errors.New("not a PE file, smaller than tiny PE")
)

var (
	ErrUnsupportedMagic = errors.New("unsupported optional header magic")

	// ErrMalformedLookupEntry is reported as a warning when a lookup table
	// entry lies entirely outside the mapped image. Decoding of the remaining
	// import directory entries stops there.
	ErrMalformedLookupEntry = errors.New(
		"damaged Import Table information. lookup entry is outside the image")
)
