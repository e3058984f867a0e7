package helper

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/handler"
	"github.com/otalab/spaces/pkg/cleaner"
	"github.com/otalab/spaces/pkg/config"
	"github.com/otalab/spaces/pkg/objstore"
)

// ConfigInitializer wires configuration into the process dependencies.
type ConfigInitializer struct {
	backendConfig *config.Config
}

func NewConfigInitializer() *ConfigInitializer {
	return &ConfigInitializer{
		backendConfig: config.GetConfig(),
	}
}

func (ci *ConfigInitializer) GetBackendConfig() *config.Config {
	return ci.backendConfig
}

// LoadDebugEnvironment reads .debug.env in debug mode so a local run can
// point at its own ports without touching the config file.
func (ci *ConfigInitializer) LoadDebugEnvironment() error {
	if gin.Mode() != gin.DebugMode {
		return nil
	}

	err := godotenv.Load(".debug.env")
	if err != nil {
		return err
	}

	be := os.Getenv("SPACES_BE_PORT")
	if be == "" {
		panic("SPACES_BE_PORT is not set")
	}
	ci.backendConfig.ServerAddr = ":" + be

	return nil
}

// InitializeRegisterConfig opens the database, runs migrations and builds
// the object store gateway.
func (ci *ConfigInitializer) InitializeRegisterConfig() (*handler.RegisterConfig, error) {
	registerConfig := &handler.RegisterConfig{}

	// init db
	if err := query.Migrate(query.GetDB()); err != nil {
		return nil, err
	}

	// init object store gateway
	store, err := objstore.NewS3Client(context.Background(), ci.backendConfig)
	if err != nil {
		return nil, err
	}
	registerConfig.ObjectStore = store

	return registerConfig, nil
}

// StartCleaner schedules the orphan sweep when it is enabled in config.
func (ci *ConfigInitializer) StartCleaner(registerConfig *handler.RegisterConfig) (*cleaner.CronManager, error) {
	if !ci.backendConfig.Cleanup.Enable {
		return nil, nil
	}
	sweeper := cleaner.NewSweeper(registerConfig.ObjectStore, ci.backendConfig.Cleanup.GraceHours)
	cronMgr := cleaner.NewCronManager(sweeper)
	if err := cronMgr.Start(ci.backendConfig.Cleanup.Schedule); err != nil {
		return nil, err
	}
	return cronMgr, nil
}
