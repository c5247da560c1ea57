package opds

import (
	"fmt"
	"strconv"
)

// TransportError is returned by a Fetcher when a URL could not be retrieved:
// the request failed, was cancelled, or the server answered with a non-2xx status.
type TransportError struct {
	Url string
	// StatusCode is 0 when no response was received
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return "fetching " + e.Url + ": unexpected status " + strconv.Itoa(e.StatusCode)
	}

	return fmt.Sprintf("fetching %s: %v", e.Url, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedFeedError is returned by Parse when the text is not a well-formed XML document.
type MalformedFeedError struct {
	Err error
}

func (e *MalformedFeedError) Error() string {
	return fmt.Sprintf("malformed feed: %v", e.Err)
}

func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}
