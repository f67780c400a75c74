package main

import "fmt"

const (
	SERVER_NAME    = "CMS-Render-Go"
	SERVER_VERSION = "0.3.0"
)

// Set at link stage via `-ldflags "-X main.GIT_COMMIT=$(git rev-parse --short HEAD)"`
var GIT_COMMIT string

// SERVER_SIGNATURE is sent in the Server header.
var SERVER_SIGNATURE = fmt.Sprintf("%s/%s (%s)", SERVER_NAME, SERVER_VERSION, func() string {
	if GIT_COMMIT != "" {
		return GIT_COMMIT
	}
	return "unknown"
}())
