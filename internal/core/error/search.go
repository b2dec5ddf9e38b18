package errx

import (
	"net/http"
)

// WrapSearch maps web search provider errors to AppError. Transport and
// upstream failures are reported as bad gateway since the provider is an
// external dependency.
func WrapSearch(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, SearchErrorMessage)
}
