// Package services implements the driving port interfaces.
// Services contain the pipeline logic (load, chunk, embed, store, retrieve,
// generate) and orchestrate calls to driven ports (adapters).
//
// Services are pure Go with no CGO. Network calls made through driven ports
// are retried and rate limited here, not in the adapters.
package services
