package domain

import "time"

// IngestReport summarises the ingestion of one document.
type IngestReport struct {
	// DocumentID is the ingested document.
	DocumentID string

	// Type is the type the document was loaded as.
	Type DocumentType

	// Characters is the length of the normalised text in runes.
	Characters int

	// Chunks is the number of records written.
	Chunks int

	// Dimensions is the embedding size of the written records.
	Dimensions int

	// Duration is the wall time of the pipeline for this document.
	Duration time.Duration
}
