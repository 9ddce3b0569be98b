package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/forensix/internal/filesystem"
)

const (
	yamlExtensionConstant        = ".yaml"
	ymlExtensionConstant         = ".yml"
	jsonIndentConstant           = "  "
	temporaryFilePatternConstant = ".baseline-*.tmp"
	directoryPermissionsConstant = 0o755
	emptyLocatorMessageConstant  = "baseline locator is empty"
	currentDirectoryPathConstant = "."
)

var errEmptyLocator = errors.New(emptyLocatorMessageConstant)

// FileSystem exposes the filesystem operations FileStore depends on.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	MkdirAll(path string, permissions fs.FileMode) error
	CreateTemp(directory string, pattern string) (io.WriteCloser, string, error)
	Rename(oldPath string, newPath string) error
	Remove(path string) error
}

// Format selects the encoding of a baseline file.
type Format string

// Supported baseline file formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForLocator chooses YAML for .yaml/.yml paths and JSON otherwise.
func FormatForLocator(locator string) Format {
	switch strings.ToLower(filepath.Ext(locator)) {
	case yamlExtensionConstant, ymlExtensionConstant:
		return FormatYAML
	default:
		return FormatJSON
	}
}

// FileStore persists baselines as JSON or YAML files. The locator is the file path.
type FileStore struct {
	fileSystem FileSystem
}

// NewFileStore constructs a FileStore; a nil fileSystem uses the operating system.
func NewFileStore(fileSystem FileSystem) *FileStore {
	if fileSystem == nil {
		fileSystem = filesystem.OSFileSystem{}
	}
	return &FileStore{fileSystem: fileSystem}
}

// Load reads the document at locator. A missing file yields ErrNotFound.
func (store *FileStore) Load(executionContext context.Context, locator string) (Document, error) {
	if len(strings.TrimSpace(locator)) == 0 {
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: errEmptyLocator}
	}
	if contextError := executionContext.Err(); contextError != nil {
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: contextError}
	}

	contents, readError := store.fileSystem.ReadFile(locator)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return Document{}, ErrNotFound
		}
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: readError}
	}

	document, decodeError := decodeDocument(contents, FormatForLocator(locator))
	if decodeError != nil {
		return Document{}, PersistenceError{Operation: OperationLoad, Locator: locator, Cause: decodeError}
	}
	return document, nil
}

// Save writes the document to locator atomically, creating parent directories.
func (store *FileStore) Save(executionContext context.Context, document Document, locator string) error {
	if len(strings.TrimSpace(locator)) == 0 {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: errEmptyLocator}
	}
	if contextError := executionContext.Err(); contextError != nil {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: contextError}
	}

	contents, encodeError := encodeDocument(document, FormatForLocator(locator))
	if encodeError != nil {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: encodeError}
	}

	if writeError := store.writeAtomically(locator, contents); writeError != nil {
		return PersistenceError{Operation: OperationSave, Locator: locator, Cause: writeError}
	}
	return nil
}

func (store *FileStore) writeAtomically(locator string, contents []byte) error {
	directory := filepath.Dir(locator)
	if directory != currentDirectoryPathConstant {
		if mkdirError := store.fileSystem.MkdirAll(directory, directoryPermissionsConstant); mkdirError != nil {
			return mkdirError
		}
	}

	temporaryWriter, temporaryPath, createError := store.fileSystem.CreateTemp(directory, temporaryFilePatternConstant)
	if createError != nil {
		return createError
	}

	renamed := false
	defer func() {
		if !renamed {
			_ = store.fileSystem.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryWriter.Write(contents); writeError != nil {
		_ = temporaryWriter.Close()
		return writeError
	}
	if closeError := temporaryWriter.Close(); closeError != nil {
		return closeError
	}

	if renameError := store.fileSystem.Rename(temporaryPath, locator); renameError != nil {
		return renameError
	}
	renamed = true
	return nil
}

func encodeDocument(document Document, format Format) ([]byte, error) {
	if format == FormatYAML {
		return yaml.Marshal(document)
	}
	encoded, encodeError := json.MarshalIndent(document, "", jsonIndentConstant)
	if encodeError != nil {
		return nil, encodeError
	}
	return append(encoded, '\n'), nil
}

func decodeDocument(contents []byte, format Format) (Document, error) {
	var document Document
	if format == FormatYAML {
		if decodeError := yaml.Unmarshal(contents, &document); decodeError != nil {
			return Document{}, decodeError
		}
		return document, nil
	}
	if decodeError := json.Unmarshal(contents, &document); decodeError != nil {
		return Document{}, decodeError
	}
	return document, nil
}
