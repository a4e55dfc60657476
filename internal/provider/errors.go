package provider

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/imamik/tracksync/internal/config"
	"github.com/imamik/tracksync/internal/platform/hcloud"
	"github.com/imamik/tracksync/internal/platform/kubevirt"
	"github.com/imamik/tracksync/internal/platform/s3"
)

// Class groups collection failures for reporting.
type Class string

// Failure classes.
const (
	ClassNone      Class = ""
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
)

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Classify sorts a collection error into transient and permanent failures.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	if IsTransient(err) {
		return ClassTransient
	}
	return ClassPermanent
}

// IsTransient reports whether a listing failure could succeed on a later run.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnsupportedType) || errors.Is(err, config.ErrMissingCredentials) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var coder httpStatusCoder
	if errors.As(err, &coder) {
		code := coder.HTTPStatusCode()
		return code == http.StatusTooManyRequests || code >= 500
	}

	if hcloud.IsTransient(err) || s3.IsTransient(err) || kubevirt.IsTransient(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
