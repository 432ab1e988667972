// Package file provides file-based implementations of driven port interfaces.
//
// Adapters:
//   - ConfigStore: TOML settings at ~/.ragbot/config.toml
//   - PromptStore: user-editable prompt templates in ~/.ragbot/prompts
package file
