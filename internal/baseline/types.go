package baseline

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/temirov/forensix/internal/digest"
)

const (
	timestampLayoutConstant               = time.RFC3339Nano
	legacyTimestampLayoutConstant         = "2006-01-02T15:04:05"
	invalidTimestampErrorTemplateConstant = "invalid timestamp %q"
)

// FileRecord describes one regular file relative to a scan root.
type FileRecord struct {
	Path       string
	Digests    map[digest.Algorithm]string
	Size       int64
	ModifiedAt time.Time
}

// Document is a point-in-time snapshot of every regular file under Root.
type Document struct {
	Timestamp  time.Time
	Root       string
	Algorithms []digest.Algorithm
	Records    map[string]FileRecord
	ScanErrors []string
}

// NewDocument constructs an empty document for root.
func NewDocument(root string, timestamp time.Time, algorithms []digest.Algorithm) Document {
	return Document{
		Timestamp:  timestamp.UTC(),
		Root:       root,
		Algorithms: append([]digest.Algorithm(nil), algorithms...),
		Records:    map[string]FileRecord{},
		ScanErrors: []string{},
	}
}

// Paths returns the record keys in sorted order.
func (document Document) Paths() []string {
	paths := make([]string, 0, len(document.Records))
	for path := range document.Records {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Algorithms returns the record's algorithm identifiers in canonical order.
func (record FileRecord) Algorithms() []digest.Algorithm {
	algorithms := make([]digest.Algorithm, 0, len(record.Digests))
	for algorithm := range record.Digests {
		algorithms = append(algorithms, algorithm)
	}
	digest.SortAlgorithms(algorithms)
	return algorithms
}

type recordWire struct {
	Hashes map[string]string `json:"hashes" yaml:"hashes"`
	Size   int64             `json:"size" yaml:"size"`
	MTime  string            `json:"mtime" yaml:"mtime"`
}

type documentWire struct {
	Timestamp  string                `json:"timestamp" yaml:"timestamp"`
	Root       string                `json:"root" yaml:"root"`
	MountPoint string                `json:"mount_point,omitempty" yaml:"mount_point,omitempty"`
	Algorithms []string              `json:"algorithms,omitempty" yaml:"algorithms,omitempty"`
	Files      map[string]recordWire `json:"files" yaml:"files"`
	Errors     []string              `json:"errors" yaml:"errors"`
}

func formatTimestamp(timestamp time.Time) string {
	return timestamp.UTC().Format(timestampLayoutConstant)
}

// parseTimestamp accepts RFC 3339 and offset-less ISO timestamps, the latter interpreted as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) == 0 {
		return time.Time{}, nil
	}
	if parsed, parseError := time.Parse(timestampLayoutConstant, trimmed); parseError == nil {
		return parsed.UTC(), nil
	}
	parsed, legacyError := time.ParseInLocation(legacyTimestampLayoutConstant, trimmed, time.UTC)
	if legacyError != nil {
		return time.Time{}, fmt.Errorf(invalidTimestampErrorTemplateConstant, raw)
	}
	return parsed, nil
}

func (record FileRecord) toWire() recordWire {
	hashes := make(map[string]string, len(record.Digests))
	for algorithm, value := range record.Digests {
		hashes[string(algorithm)] = value
	}
	return recordWire{
		Hashes: hashes,
		Size:   record.Size,
		MTime:  formatTimestamp(record.ModifiedAt),
	}
}

// fromWire drops hash keys outside the algorithm enumeration, such as the
// "error" entries older baselines carried.
func (wire recordWire) fromWire(path string) (FileRecord, error) {
	modifiedAt, timestampError := parseTimestamp(wire.MTime)
	if timestampError != nil {
		return FileRecord{}, fmt.Errorf("%s: %w", path, timestampError)
	}

	digests := make(map[digest.Algorithm]string, len(wire.Hashes))
	for name, value := range wire.Hashes {
		algorithm := digest.Algorithm(strings.ToLower(name))
		if !algorithm.Supported() {
			continue
		}
		digests[algorithm] = strings.ToLower(value)
	}

	return FileRecord{
		Path:       path,
		Digests:    digests,
		Size:       wire.Size,
		ModifiedAt: modifiedAt,
	}, nil
}

func (document Document) toWire() documentWire {
	files := make(map[string]recordWire, len(document.Records))
	for path, record := range document.Records {
		files[path] = record.toWire()
	}

	algorithms := make([]string, 0, len(document.Algorithms))
	for _, algorithm := range document.Algorithms {
		algorithms = append(algorithms, string(algorithm))
	}

	scanErrors := append([]string{}, document.ScanErrors...)

	return documentWire{
		Timestamp:  formatTimestamp(document.Timestamp),
		Root:       document.Root,
		Algorithms: algorithms,
		Files:      files,
		Errors:     scanErrors,
	}
}

func (wire documentWire) fromWire() (Document, error) {
	timestamp, timestampError := parseTimestamp(wire.Timestamp)
	if timestampError != nil {
		return Document{}, timestampError
	}

	root := wire.Root
	if len(root) == 0 {
		root = wire.MountPoint
	}

	algorithms := make([]digest.Algorithm, 0, len(wire.Algorithms))
	for _, name := range wire.Algorithms {
		algorithm := digest.Algorithm(strings.ToLower(name))
		if algorithm.Supported() {
			algorithms = append(algorithms, algorithm)
		}
	}

	records := make(map[string]FileRecord, len(wire.Files))
	for path, recordData := range wire.Files {
		record, recordError := recordData.fromWire(path)
		if recordError != nil {
			return Document{}, recordError
		}
		records[path] = record
	}

	scanErrors := append([]string{}, wire.Errors...)

	return Document{
		Timestamp:  timestamp,
		Root:       root,
		Algorithms: algorithms,
		Records:    records,
		ScanErrors: scanErrors,
	}, nil
}

// MarshalJSON encodes the record in its persisted form.
func (record FileRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(record.toWire())
}

// UnmarshalJSON decodes the persisted form. The path is not part of the form.
func (record *FileRecord) UnmarshalJSON(data []byte) error {
	var wire recordWire
	if decodeError := json.Unmarshal(data, &wire); decodeError != nil {
		return decodeError
	}
	decoded, convertError := wire.fromWire(record.Path)
	if convertError != nil {
		return convertError
	}
	*record = decoded
	return nil
}

// MarshalJSON encodes the document in its persisted form.
func (document Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(document.toWire())
}

// UnmarshalJSON decodes the persisted form.
func (document *Document) UnmarshalJSON(data []byte) error {
	var wire documentWire
	if decodeError := json.Unmarshal(data, &wire); decodeError != nil {
		return decodeError
	}
	decoded, convertError := wire.fromWire()
	if convertError != nil {
		return convertError
	}
	*document = decoded
	return nil
}

// MarshalYAML encodes the document with the same keys as the JSON form.
func (document Document) MarshalYAML() (any, error) {
	return document.toWire(), nil
}

// UnmarshalYAML decodes the YAML form.
func (document *Document) UnmarshalYAML(node *yaml.Node) error {
	var wire documentWire
	if decodeError := node.Decode(&wire); decodeError != nil {
		return decodeError
	}
	decoded, convertError := wire.fromWire()
	if convertError != nil {
		return convertError
	}
	*document = decoded
	return nil
}
