package web

import (
	"embed"
)

// staticFiles holds the embedded index page and its script.
//
//go:embed static/*
var staticFiles embed.FS
