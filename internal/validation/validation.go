// Package validation binds Echo requests into request structs and turns
// validator failures into errs.HTTPError field errors.
package validation
