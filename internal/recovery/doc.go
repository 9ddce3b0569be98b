// Package recovery extracts deleted files from a filesystem image or block
// device with The Sleuth Kit. fls lists the deleted names and icat streams
// each regular file's content into the recovery directory.
package recovery
