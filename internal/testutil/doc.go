// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing directive-bearing model replies and
// feeding them to a parser in arbitrary chunks. These helpers are
// intentionally minimal and not intended for production usage.
package testutil
