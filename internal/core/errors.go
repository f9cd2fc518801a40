package core

import (
	"errors"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// resolutionError reports an input the build server cannot resolve:
// an unknown build type, or a missing from/to build. It aborts the
// manifest being generated.
func resolutionError(message string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(message)
}

// IsResolutionError reports whether err aborted a manifest because the
// build type or the from/to builds could not be resolved.
func IsResolutionError(err error) bool {
	return err != nil && errbuilder.CodeOf(err) == errbuilder.CodeNotFound
}

func messageOf(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
