package storage

import "errors"

// ErrNoPublicURL is returned by PublicURL when no public base URL is configured.
var ErrNoPublicURL = errors.New("public url not configured")
