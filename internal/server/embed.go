package server

import (
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/fleetsim/webui"
)

// RegisterDashboard mounts the embedded dashboard under /dashboard.
// The page polls /services, so opening it keeps the simulator awake.
func RegisterDashboard(r *gin.Engine) {
	webRoot, err := fs.Sub(webui.FS, "web")
	if err != nil {
		panic("embed: web sub-fs failed: " + err.Error())
	}
	r.StaticFS("/dashboard", http.FS(webRoot))
}
