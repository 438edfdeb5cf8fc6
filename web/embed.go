// Package web holds the browser frontend served by the relay on plain HTTP requests.
package web

import "embed"

//go:embed index.html script.js
var Assets embed.FS
