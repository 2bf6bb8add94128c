// Package configs embeds the configuration template written by
// `tfrag config init`.
package configs

import _ "embed"

// ProjectConfigTemplate is written to .tfrag.yaml in the project directory.
// Every setting is commented out so the file starts as a no-op over the
// defaults.
//
//go:embed project.example.yaml
var ProjectConfigTemplate string
