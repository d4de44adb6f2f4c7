package reference

import (
	"errors"
	"fmt"
)

// ErrMissingAsset matches every MissingAssetError via errors.Is.
var ErrMissingAsset = errors.New("missing asset")

// MissingAssetError reports a declared reference whose image could not be
// read or decoded.
type MissingAssetError struct {
	Name string
	Path string
	Err  error
}

func (e *MissingAssetError) Error() string {
	return fmt.Sprintf("reference %s: cannot load %s: %v", e.Name, e.Path, e.Err)
}

func (e *MissingAssetError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMissingAsset) succeed.
func (e *MissingAssetError) Is(target error) bool { return target == ErrMissingAsset }
