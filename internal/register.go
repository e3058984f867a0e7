package internal

import (
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/otalab/spaces/internal/handler"
	"github.com/otalab/spaces/internal/middleware"
)

// registerManagers instantiates every handler that registered itself at
// init time.
func registerManagers(config *handler.RegisterConfig) []handler.Manager {
	var managers []handler.Manager
	for _, register := range handler.Registers {
		manager := register(config)
		managers = append(managers, manager)
		klog.Infof("Registered manager: %s", manager.GetName())
	}
	return managers
}

type Backend struct {
	R *gin.Engine
}

func Register(conf *handler.RegisterConfig) *Backend {
	s := new(Backend)
	s.R = gin.Default()

	// Load balancer health check
	s.R.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "ok",
		})
	})

	// Enable CORS for http://localhost:XXXX in debug mode
	if gin.Mode() == gin.DebugMode {
		fe := os.Getenv("SPACES_FE_PORT")
		if fe != "" {
			url := "http://localhost:" + fe
			corsConf := cors.DefaultConfig()
			corsConf.AllowOrigins = []string{url}
			s.R.Use(cors.New(corsConf))
		}
	}

	managers := registerManagers(conf)

	publicRouter := s.R.Group("/")

	protectedRouter := s.R.Group("/api")
	protectedRouter.Use(middleware.AuthProtected())

	adminRouter := s.R.Group("/api/admin")
	adminRouter.Use(middleware.AuthProtected(), middleware.AuthAdmin())

	for _, manager := range managers {
		manager.RegisterPublic(publicRouter)
		manager.RegisterProtected(protectedRouter)
		manager.RegisterAdmin(adminRouter)
	}

	return s
}
