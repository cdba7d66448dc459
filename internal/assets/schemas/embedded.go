// Package schemasassets provides embedded JSON schemas for standalone binary behavior.
//
// Schemas are embedded at compile time so manifest validation works
// regardless of the working directory or installation location.
package schemasassets

import _ "embed"

// GateManifestSchema is the embedded gate-manifest JSON schema.
//
//go:embed gate-manifest.schema.json
var GateManifestSchema []byte
