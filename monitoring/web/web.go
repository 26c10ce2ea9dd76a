// Package web holds the page served by the kernel monitor.
package web

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"os"
)

// AssetsEnv names a directory to serve instead of the embedded page, so the
// page can be edited without rebuilding.
const AssetsEnv = "RVKERNEL_MONITOR_ASSETS"

//go:embed dist/*
var staticAssets embed.FS

// GetAssets returns the static assets
func GetAssets() http.FileSystem {
	if dir, ok := os.LookupEnv(AssetsEnv); ok && dir != "" {
		log.Printf("Serving monitor assets from %s", dir)
		return http.Dir(dir)
	}

	subFS, err := fs.Sub(staticAssets, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(subFS)
}
