package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

const (
	readChunkSizeConstant            = 64 * 1024
	noAlgorithmsMessageConstant      = "no digest algorithms configured"
	ioFailureTemplateConstant        = "%s: %v"
	ioFailureNoCauseTemplateConstant = "%s: unreadable"
)

// ErrNoAlgorithms indicates an empty algorithm set.
var ErrNoAlgorithms = errors.New(noAlgorithmsMessageConstant)

// FileOpener opens a byte stream for a path.
type FileOpener interface {
	Open(path string) (io.ReadCloser, error)
}

// IOFailure reports that a file could not be opened or read.
type IOFailure struct {
	Path  string
	Cause error
}

// Error describes the failing path and cause.
func (failure IOFailure) Error() string {
	if failure.Cause == nil {
		return fmt.Sprintf(ioFailureNoCauseTemplateConstant, failure.Path)
	}
	return fmt.Sprintf(ioFailureTemplateConstant, failure.Path, failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure IOFailure) Unwrap() error {
	return failure.Cause
}

// Hasher computes digests for a fixed algorithm set.
type Hasher struct {
	algorithms []Algorithm
}

// NewHasher validates the algorithm set and constructs a Hasher.
func NewHasher(algorithms []Algorithm) (*Hasher, error) {
	if len(algorithms) == 0 {
		return nil, ErrNoAlgorithms
	}

	names := make([]string, 0, len(algorithms))
	for _, algorithm := range algorithms {
		names = append(names, string(algorithm))
	}

	validated, parseError := ParseAlgorithms(names)
	if parseError != nil {
		return nil, parseError
	}

	return &Hasher{algorithms: validated}, nil
}

// Algorithms returns a copy of the configured algorithm set.
func (hasher *Hasher) Algorithms() []Algorithm {
	return append([]Algorithm(nil), hasher.algorithms...)
}

// ComputeDigests streams reader once through every configured algorithm.
func (hasher *Hasher) ComputeDigests(reader io.Reader) (map[Algorithm]string, error) {
	states := make(map[Algorithm]hash.Hash, len(hasher.algorithms))
	writers := make([]io.Writer, 0, len(hasher.algorithms))
	for _, algorithm := range hasher.algorithms {
		state := algorithm.newHash()
		states[algorithm] = state
		writers = append(writers, state)
	}

	buffer := make([]byte, readChunkSizeConstant)
	if _, copyError := io.CopyBuffer(io.MultiWriter(writers...), reader, buffer); copyError != nil {
		return nil, copyError
	}

	digests := make(map[Algorithm]string, len(states))
	for algorithm, state := range states {
		digests[algorithm] = hex.EncodeToString(state.Sum(nil))
	}
	return digests, nil
}

// ComputeFileDigests opens path through opener and digests its contents.
// Open and read failures are returned as IOFailure.
func (hasher *Hasher) ComputeFileDigests(opener FileOpener, path string) (map[Algorithm]string, error) {
	stream, openError := opener.Open(path)
	if openError != nil {
		return nil, IOFailure{Path: path, Cause: openError}
	}
	defer stream.Close()

	digests, readError := hasher.ComputeDigests(stream)
	if readError != nil {
		return nil, IOFailure{Path: path, Cause: readError}
	}
	return digests, nil
}
