//go:build !govips || !cgo

package upload

func Startup() error {
	return nil
}

func Shutdown() {}

func newResizer() (resizer, error) {
	return imagingResizer{}, nil
}
