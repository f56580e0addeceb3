package site

import "embed"

//go:embed content/*.md
var contentFS embed.FS

//go:embed templates/*.html
var templateFS embed.FS
