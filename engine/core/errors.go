package core

import (
	"errors"
)

var (
	ErrInvalidChannelCount  = errors.New("channel count must be between 1 and 4")
	ErrInvalidChannelRange  = errors.New("channel range max must be greater than zero")
	ErrInvalidFlattenOrder  = errors.New("unknown flatten order")
	ErrInvalidNormalization = errors.New("unknown channel normalization")
	ErrSourceTooShort       = errors.New("source buffer is shorter than the copy region requires")
	ErrTargetTooSmall       = errors.New("target image does not cover offset plus extent")
	ErrNilTarget            = errors.New("target image is nil")
	ErrInvalidIndex         = errors.New("index references a vertex that does not exist")
	ErrTooManyVertices      = errors.New("draw command list exceeds the vertex or index limit")
	ErrInvalidHandle        = errors.New("the resource pointed to by this handle does not exist")
	ErrMissingTexture       = errors.New("draw requests a texture but none is bound")
	ErrInvalidExtent        = errors.New("image extent must be positive")
	ErrUnsupportedImage     = errors.New("unsupported image layout")
	ErrImageTooLarge        = errors.New("the provided image is too large to decode")
	ErrPixelBufferSize      = errors.New("pixel buffer length does not match layout and extent")
	ErrNotInitialized       = errors.New("engine is not initialized")
	ErrUnknown              = errors.New("unknown")
)
