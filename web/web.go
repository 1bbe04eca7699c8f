// Package web embeds the browser client served at / and /static.
package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html static
var assets embed.FS

// Assets returns index.html at the root and the client files under static/.
func Assets() fs.FS {
	return assets
}
