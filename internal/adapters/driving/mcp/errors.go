// Package mcp provides an MCP (Model Context Protocol) server adapter for ragdesk.
// It lets AI assistants add text to a collection, search it and ask
// questions answered from it.
package mcp

import "errors"

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")

// errUnavailable is returned by tools whose port was not provided.
var errUnavailable = errors.New("mcp: tool is not available in this server")
