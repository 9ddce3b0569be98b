package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"
)

const (
	unsupportedAlgorithmTemplateConstant = "unsupported digest algorithm %q"
	algorithmListSeparatorConstant       = ","
)

// Algorithm identifies a supported digest algorithm.
type Algorithm string

// Supported digest algorithms.
const (
	AlgorithmMD5    Algorithm = "md5"
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
	AlgorithmSHA512 Algorithm = "sha512"
	AlgorithmXXH3   Algorithm = "xxh3"
)

var algorithmConstructors = map[Algorithm]func() hash.Hash{
	AlgorithmMD5:    md5.New,
	AlgorithmSHA1:   sha1.New,
	AlgorithmSHA256: sha256.New,
	AlgorithmSHA512: sha512.New,
	AlgorithmXXH3:   newXXH3Hash128,
}

// DefaultAlgorithms returns the algorithm set used when none is configured.
func DefaultAlgorithms() []Algorithm {
	return []Algorithm{AlgorithmMD5, AlgorithmSHA256}
}

// SupportedAlgorithms lists every algorithm in canonical order.
func SupportedAlgorithms() []Algorithm {
	supported := make([]Algorithm, 0, len(algorithmConstructors))
	for algorithm := range algorithmConstructors {
		supported = append(supported, algorithm)
	}
	SortAlgorithms(supported)
	return supported
}

// SupportedAlgorithmNames lists every algorithm identifier in canonical order.
func SupportedAlgorithmNames() []string {
	supported := SupportedAlgorithms()
	names := make([]string, 0, len(supported))
	for _, algorithm := range supported {
		names = append(names, string(algorithm))
	}
	return names
}

// Supported reports whether the algorithm is part of the enumeration.
func (algorithm Algorithm) Supported() bool {
	_, exists := algorithmConstructors[algorithm]
	return exists
}

// String returns the identifier used in persisted documents.
func (algorithm Algorithm) String() string {
	return string(algorithm)
}

// xxh3Hash128 exposes the 128-bit xxh3 state through hash.Hash.
type xxh3Hash128 struct {
	*xxh3.Hasher
}

func newXXH3Hash128() hash.Hash {
	return xxh3Hash128{Hasher: xxh3.New()}
}

func (state xxh3Hash128) Sum(prefix []byte) []byte {
	sum := state.Sum128().Bytes()
	return append(prefix, sum[:]...)
}

func (state xxh3Hash128) Size() int {
	return 16
}

func (algorithm Algorithm) newHash() hash.Hash {
	return algorithmConstructors[algorithm]()
}

// UnsupportedAlgorithmError reports an identifier outside the enumeration.
type UnsupportedAlgorithmError struct {
	Name string
}

// Error describes the rejected identifier.
func (algorithmError UnsupportedAlgorithmError) Error() string {
	return fmt.Sprintf(unsupportedAlgorithmTemplateConstant, algorithmError.Name)
}

// ParseAlgorithms validates identifiers and returns a de-duplicated set in canonical order.
// Entries may themselves be comma separated.
func ParseAlgorithms(names []string) ([]Algorithm, error) {
	seen := make(map[Algorithm]struct{}, len(names))
	parsed := make([]Algorithm, 0, len(names))

	for _, rawName := range names {
		for _, segment := range strings.Split(rawName, algorithmListSeparatorConstant) {
			normalized := strings.ToLower(strings.TrimSpace(segment))
			if len(normalized) == 0 {
				continue
			}

			algorithm := Algorithm(normalized)
			if !algorithm.Supported() {
				return nil, UnsupportedAlgorithmError{Name: strings.TrimSpace(segment)}
			}
			if _, duplicate := seen[algorithm]; duplicate {
				continue
			}
			seen[algorithm] = struct{}{}
			parsed = append(parsed, algorithm)
		}
	}

	if len(parsed) == 0 {
		return nil, ErrNoAlgorithms
	}

	SortAlgorithms(parsed)
	return parsed, nil
}

// SortAlgorithms orders algorithms by identifier in place.
func SortAlgorithms(algorithms []Algorithm) {
	sort.Slice(algorithms, func(first int, second int) bool {
		return algorithms[first] < algorithms[second]
	})
}
