//go:build !windows && !linux && !darwin && !freebsd

package debug

import "errors"

func processRSS() (uint64, error) { return 0, errors.ErrUnsupported }
