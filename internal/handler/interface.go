package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/otalab/spaces/pkg/objstore"
)

type Manager interface {
	GetName() string
	RegisterPublic(group *gin.RouterGroup)
	RegisterProtected(group *gin.RouterGroup)
	RegisterAdmin(group *gin.RouterGroup)
}

// RegisterConfig carries the shared dependencies a manager may need.
type RegisterConfig struct {
	ObjectStore objstore.Client
}

type RegisterFunc func(config *RegisterConfig) Manager

// Registers collects the manager constructors; each handler file appends
// its own in init().
var Registers []RegisterFunc
