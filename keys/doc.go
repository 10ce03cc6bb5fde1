// Package keys derives deterministic call keys from function arguments.
//
// A call is described by Args (positional values, named values and an
// optional receiver). Args are bound against a Signature, producing a
// Binding of (parameter, value) pairs that is identical whether the caller
// used positional or named syntax. The binding, or the output of a custom
// KeyFunc, is the pre-key. Pending elements of the pre-key are resolved
// concurrently before the pre-key is canonicalized to JSON and hashed with
// SHA-256.
//
// Two calls share a CallKey exactly when their canonical encodings are equal.
// The digest is a short fingerprint for logs and durable records; it is never
// used on its own to decide equality.
package keys
