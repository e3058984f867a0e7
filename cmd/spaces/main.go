package main

import (
	"k8s.io/klog/v2"

	"github.com/otalab/spaces/cmd/spaces/helper"
)

// @title						Spaces API
// @version						1.0.0
// @description					This is the API server for Spaces, a multi-tenant firmware distribution portal.
// @securityDefinitions.apikey	Bearer
// @in							header
// @name						Authorization
// @description					Call /login to obtain a token, then supply 'Bearer ${TOKEN}' to reach protected routes.
func main() {
	// Initialize configuration
	configInit := helper.NewConfigInitializer()
	backendConfig := configInit.GetBackendConfig()

	// Load debug environment if needed
	if err := configInit.LoadDebugEnvironment(); err != nil {
		klog.Fatalf("Failed to load env: %s", err)
	}

	// Initialize register config and dependencies
	registerConfig, err := configInit.InitializeRegisterConfig()
	if err != nil {
		klog.Fatalf("Failed to register config: %s\n", err)
	}

	// Start the orphan sweep scheduler
	cronMgr, err := configInit.StartCleaner(registerConfig)
	if err != nil {
		klog.Fatalf("Failed to start cleaner: %s", err)
	}
	if cronMgr != nil {
		defer cronMgr.Stop()
	}

	// Start HTTP server
	serverRunner := helper.NewServerRunner(backendConfig)
	serverRunner.StartServer(registerConfig)
}
