// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing core model objects (events,
// blocks, strokes) and to make probabilistic code deterministic. They are
// not intended for production usage.
package testutil
