// Package web holds the dashboard templates and the static assets they load.
package web

import "embed"

// TemplatesFS holds the page, the profile sidebar and one partial per tab.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the notification script.
//
//go:embed static/*
var StaticFS embed.FS
