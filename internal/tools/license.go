package tools

import (
	"context"
	"errors"
)

// ErrNoLicense is returned when a token is requested without a license key.
var ErrNoLicense = errors.New("no license key configured")

// StaticLicense is a LicenseSource backed by a configured license key. The
// hosted license service exchanges the key for short-lived tokens; until that
// exchange is wired the key itself is the bearer credential.
type StaticLicense struct {
	Key string
}

var _ LicenseSource = StaticLicense{}

// Valid reports whether a license key is configured.
func (l StaticLicense) Valid(context.Context) bool {
	return l.Key != ""
}

// AccessToken returns the bearer credential for the premium provider.
func (l StaticLicense) AccessToken(context.Context) (string, error) {
	if l.Key == "" {
		return "", ErrNoLicense
	}
	return l.Key, nil
}
