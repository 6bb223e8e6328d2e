package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Channel is the way an image reached the form.
type Channel string

const (
	ChannelPicker Channel = "picker"
	ChannelPaste  Channel = "paste"
	ChannelDrop   Channel = "drop"
	ChannelObject Channel = "object"
)

var (
	ErrNotImage = errors.New("file is not an image")
	ErrEmpty    = errors.New("no file provided")
	ErrTooLarge = errors.New("image exceeds the upload limit")
)

// Upload is the single pending image of a form.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
	Channel     Channel
}

func (u Upload) IsImage() bool {
	return strings.HasPrefix(u.ContentType, "image/")
}

func (u Upload) Size() int {
	return len(u.Data)
}

func ParseChannel(value string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(value))) {
	case "", ChannelPicker:
		return ChannelPicker, nil
	case ChannelPaste:
		return ChannelPaste, nil
	case ChannelDrop:
		return ChannelDrop, nil
	case ChannelObject:
		return ChannelObject, nil
	default:
		return "", fmt.Errorf("unsupported upload channel: %s", value)
	}
}

// New builds an upload from raw bytes. Paste and drop only take images; the
// file picker accepts whatever the user chose.
func New(channel Channel, name string, data []byte) (Upload, error) {
	if len(data) == 0 {
		return Upload{}, ErrEmpty
	}

	u := Upload{
		Name:        sanitizeName(name),
		ContentType: http.DetectContentType(data),
		Data:        data,
		Channel:     channel,
	}
	if (channel == ChannelPaste || channel == ChannelDrop) && !u.IsImage() {
		return Upload{}, fmt.Errorf("%w: %s", ErrNotImage, u.ContentType)
	}
	return u, nil
}

func FromFile(filePath string) (Upload, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Upload{}, fmt.Errorf("read input file %s: %w", filePath, err)
	}
	return New(ChannelPicker, filepath.Base(filePath), data)
}

func FromClipboard(r io.Reader, name string) (Upload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Upload{}, fmt.Errorf("read clipboard: %w", err)
	}
	return New(ChannelPaste, name, data)
}

// FromDrop takes the first dropped file.
func FromDrop(files []Upload) (Upload, error) {
	if len(files) == 0 {
		return Upload{}, ErrEmpty
	}
	first := files[0]
	return New(ChannelDrop, first.Name, first.Data)
}

type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

func FromObject(ctx context.Context, reader ObjectReader, objectKey string) (Upload, error) {
	if reader == nil {
		return Upload{}, errors.New("object reader is required")
	}
	data, err := reader.ReadObject(ctx, objectKey)
	if err != nil {
		return Upload{}, err
	}
	return New(ChannelObject, path.Base(objectKey), data)
}

func sanitizeName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == "/" {
		return "image"
	}
	return name
}
