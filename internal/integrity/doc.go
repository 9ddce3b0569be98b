// Package integrity compares baseline documents and orchestrates verification runs.
//
// Diff classifies every path of two documents as unchanged, modified, added or
// missing. Service loads the stored baseline, builds a current snapshot and
// returns the report; when no baseline exists it records the first one instead.
// The verify and baseline commands expose both operations through cobra.
package integrity
