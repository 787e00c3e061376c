// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing core model objects (transcripts,
// messages, tool call/result pairs) and scripting deterministic capability
// responses. These helpers are intentionally minimal and are not intended
// for production usage.
package testutil
