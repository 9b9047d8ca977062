// Package schemas embeds the JSON Schemas every structured generation output is checked against.
package schemas

import "embed"

// FS holds the *.schema.json files
//
//go:embed *.schema.json
var FS embed.FS
