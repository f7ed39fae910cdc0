// Package model holds the domain types shared by the repository,
// service and handler layers.
//
// Types here carry no database or HTTP concerns. They describe an
// annotation, the parameters used to create or change one, and the
// filters used to query them.
package model
