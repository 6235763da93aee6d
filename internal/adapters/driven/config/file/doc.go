// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the ragdesk home directory (~/.ragdesk).
//
// Adapters:
//   - ConfigStore: TOML settings with dot-notation keys
//   - PromptStore: user-editable answer templates
package file
