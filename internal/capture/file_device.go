package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"
)

var _ Device = (*FileDevice)(nil)

// FileDevice reads still frames from an image file that an external camera
// tool keeps up to date.
type FileDevice struct {
	path string
}

func NewFileDevice(path string) *FileDevice {
	return &FileDevice{path: path}
}

func (d *FileDevice) Open(ctx context.Context) error {
	if d.path == "" {
		return errors.New("no frame path configured")
	}

	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("frame source %s: %w", d.path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("frame source %s is a directory", d.path)
	}
	return nil
}

func (d *FileDevice) Frame(ctx context.Context) (image.Image, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, &Error{Kind: DeviceUnavailable, Err: err}
	}
	if info.Size() == 0 {
		return nil, &Error{Kind: EmptyFrame, Err: fmt.Errorf("frame source %s is empty", d.path)}
	}

	img, err := imaging.Open(d.path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &Error{Kind: EmptyFrame, Err: err}
	}
	return img, nil
}

func (d *FileDevice) Close() error {
	return nil
}
