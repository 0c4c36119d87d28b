package services

import "errors"

// ErrInvalidCredentials is returned by Authenticate for an unknown email, a
// wrong password or an inactive account alike.
var ErrInvalidCredentials = errors.New("invalid credentials")
