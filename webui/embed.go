// Package webui exposes the embedded dashboard filesystem.
// It lives at the module root so it can embed the sibling "web/" directory;
// internal/server/embed.go mounts it under /dashboard.
package webui

import "embed"

// FS is the embedded web directory tree.
//
//go:embed web
var FS embed.FS
