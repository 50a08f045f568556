package domain

import "github.com/m-mizutani/goerr/v2"

var (
	ErrAuthentication    = goerr.New("authentication failed")
	ErrAPIRequest        = goerr.New("API request failed")
	ErrConfiguration     = goerr.New("configuration error")
	ErrRepository        = goerr.New("repository error")
	ErrMissingCredential = goerr.New("missing credential")
	ErrCache             = goerr.New("dependency cache error")
	ErrDownstream        = goerr.New("downstream command failed")
	ErrSuperseded        = goerr.New("run superseded by a newer run")
)
