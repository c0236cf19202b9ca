// Package web embeds the single-page grading form.
package web

import _ "embed"

// Index is the grading page served at "/".
//
//go:embed index.html
var Index []byte
