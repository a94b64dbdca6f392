// Package version reports build metadata for pitwall binaries. Values come
// from -ldflags when set and fall back to the module's embedded VCS info.
//
//	go build -ldflags "-X github.com/kbukum/pitwall/version.Version=v0.3.0"
package version
