package capture

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/models"
)

const (
	defaultMaxWidth  = 1280
	defaultMaxHeight = 1280
	defaultQuality   = 85
)

// Kind classifies capture failures.
type Kind int

const (
	DeviceUnavailable Kind = iota + 1
	EmptyFrame
)

func (k Kind) String() string {
	switch k {
	case DeviceUnavailable:
		return "device unavailable"
	case EmptyFrame:
		return "empty frame"
	default:
		return "unknown"
	}
}

// Error is returned by the controller when the device is missing or yields
// no frame.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "capture failed: " + e.Kind.String()
	}
	return fmt.Sprintf("capture failed: %s: %v", e.Kind, e.Err)
}

// Unwrap exposes the matching models sentinel alongside the cause.
func (e *Error) Unwrap() []error {
	var sentinel error
	switch e.Kind {
	case DeviceUnavailable:
		sentinel = models.ErrDeviceUnavailable
	case EmptyFrame:
		sentinel = models.ErrEmptyCapture
	}

	errs := []error{}
	if sentinel != nil {
		errs = append(errs, sentinel)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Device is a camera that can produce still frames between Open and Close.
type Device interface {
	Open(ctx context.Context) error
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Image is an encoded still frame.
type Image struct {
	Data        []byte
	ContentType string
	// Ref is the base58 SHA-256 of Data, used as a local image reference.
	Ref string
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxSize bounds the encoded frame; larger frames are scaled down
// preserving aspect ratio.
func WithMaxSize(width, height int) Option {
	return func(c *Controller) {
		c.maxWidth = width
		c.maxHeight = height
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(q int) Option {
	return func(c *Controller) {
		c.quality = q
	}
}

// Controller owns the camera device lifecycle. It never touches session
// state.
type Controller struct {
	mu        sync.Mutex
	dev       Device
	opened    bool
	maxWidth  int
	maxHeight int
	quality   int
}

func NewController(dev Device, opts ...Option) *Controller {
	c := &Controller{
		dev:       dev,
		maxWidth:  defaultMaxWidth,
		maxHeight: defaultMaxHeight,
		quality:   defaultQuality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsOpen reports whether the device is currently held.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opened
}

// Open acquires the device. Opening an already open controller is a no-op.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opened {
		return nil
	}
	if c.dev == nil {
		return &Error{Kind: DeviceUnavailable, Err: errors.New("no capture device configured")}
	}

	if err := c.dev.Open(ctx); err != nil {
		return &Error{Kind: DeviceUnavailable, Err: err}
	}
	c.opened = true

	log.Debug().Msg("capture device opened")
	return nil
}

// Capture grabs a single frame and encodes it as JPEG. The device lock is
// not held while waiting for the frame so Close can interrupt it.
func (c *Controller) Capture(ctx context.Context) (Image, error) {
	c.mu.Lock()
	opened, dev := c.opened, c.dev
	c.mu.Unlock()

	if !opened {
		return Image{}, &Error{Kind: DeviceUnavailable, Err: errors.New("device not open")}
	}

	frame, err := dev.Frame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Image{}, ctx.Err()
		}
		var capErr *Error
		if errors.As(err, &capErr) {
			return Image{}, capErr
		}
		return Image{}, &Error{Kind: EmptyFrame, Err: err}
	}
	if frame == nil || frame.Bounds().Empty() {
		return Image{}, &Error{Kind: EmptyFrame}
	}

	b := frame.Bounds()
	if b.Dx() > c.maxWidth || b.Dy() > c.maxHeight {
		frame = imaging.Fit(frame, c.maxWidth, c.maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return Image{}, &Error{Kind: EmptyFrame, Err: err}
	}

	sum := sha256.Sum256(buf.Bytes())
	img := Image{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Ref:         base58.Encode(sum[:]),
	}

	log.Debug().
		Str("ref", img.Ref).
		Int("bytes", len(img.Data)).
		Int("width", frame.Bounds().Dx()).
		Int("height", frame.Bounds().Dy()).
		Msg("frame captured")

	return img, nil
}

// Close releases the device. It is safe to call at any time, including
// when the device was never opened.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opened {
		return nil
	}
	c.opened = false

	if err := c.dev.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to release capture device")
		return fmt.Errorf("failed to release capture device: %w", err)
	}

	log.Debug().Msg("capture device released")
	return nil
}
