// Package normalisers provides implementations of the Normaliser interface
// for the supported document types. Each normaliser knows how to extract
// text content from one type.
//
// Normalisers are registered with the Loader at startup.
package normalisers
