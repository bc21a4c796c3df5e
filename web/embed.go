// Package web provides embedded HTML templates for the tull gateway.
package web

import "embed"

// Templates contains the embedded HTML templates.
//
//go:embed templates/*
var Templates embed.FS
