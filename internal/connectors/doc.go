// Package connectors holds the document sources ragdesk can read from.
// The filesystem connector turns paths given on the command line into
// typed documents for the ingest pipeline.
package connectors
