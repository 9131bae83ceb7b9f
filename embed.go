package batchjoborch

import _ "embed"

// OpenAPIYAML is the embedded OpenAPI specification.
//
//go:embed openapi.yaml
var OpenAPIYAML []byte
