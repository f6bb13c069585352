package collector

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an upstream call produced no data.
type ErrorKind string

const (
	KindTransport   ErrorKind = "transport"   // unreachable, timeout, non-2xx
	KindDecode      ErrorKind = "decode"      // body is not the expected JSON
	KindCredentials ErrorKind = "credentials" // API key not configured
)

// FetchError is returned alongside an empty result by every fetcher.
type FetchError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var (
	errMissingAPIKey  = errors.New("api key not configured")
	errNoObservations = errors.New("response has no observations")
)

// KindOf returns the kind of a FetchError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
