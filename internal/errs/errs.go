// Package errs defines the error shapes of the service.
//
// Two families live here:
//   - domain kinds (ErrInvalidInput, ErrNotFound, ...) returned by the
//     annotation store and tested with errors.Is;
//   - HTTPError, the JSON body every failed API call responds with.
//
// FromKind bridges the first family into the second.
package errs
