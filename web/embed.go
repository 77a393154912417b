package web

import "embed"

// TemplatesFS holds the page and partial templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css and app.js, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
