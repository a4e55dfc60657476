package hcloud

import (
	"errors"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// IsTransient reports whether an API error is worth retrying on a later
// run: rate limiting, locks and temporary unavailability.
func IsTransient(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeRateLimitExceeded,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
		hcloud.ErrorCodeResourceUnavailable,
		hcloud.ErrorCodeServiceError,
		hcloud.ErrorCodeTimeout,
		hcloud.ErrorCodeMaintenance,
	)
}

// IsUnauthorized reports whether the token was rejected.
func IsUnauthorized(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeUnauthorized, hcloud.ErrorCodeForbidden)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}

	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}
