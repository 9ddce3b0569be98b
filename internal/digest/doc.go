// Package digest computes content fingerprints for file streams.
//
// It exposes a closed Algorithm enumeration bound to concrete hash
// constructors, ParseAlgorithms for validating configured identifiers, and
// Hasher for streaming one byte source through every requested algorithm in a
// single pass.
package digest
