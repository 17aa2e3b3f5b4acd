// Package configs provides embedded configuration templates for
// codescout. Templates are embedded at build time so they ship with
// every distribution; 'codescout init' writes them into a project.
package configs

import _ "embed"

// ProjectConfigTemplate is the annotated template written to
// .codescout.yaml by 'codescout init'.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
