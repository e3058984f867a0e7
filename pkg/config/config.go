package config

import (
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

type Config struct {
	// Port Settings
	Host       string `json:"host"`       // The domain name of the server.
	ServerAddr string `json:"serverAddr"` // The address the server endpoint binds to.

	Auth struct {
		AccessTokenSecret      string `json:"accessTokenSecret"`
		RefreshTokenSecret     string `json:"refreshTokenSecret"`
		AccessTokenExpiryHour  int    `json:"accessTokenExpiryHour"`
		RefreshTokenExpiryHour int    `json:"refreshTokenExpiryHour"`
	} `json:"auth"`

	Postgres struct {
		Host     string `json:"host"`
		Port     string `json:"port"`
		DBName   string `json:"dbname"`
		User     string `json:"user"`
		Password string `json:"password"`
		SSLMode  string `json:"sslmode"`
		TimeZone string `json:"TimeZone"`
	} `json:"postgres"`

	// Object store settings. Endpoint and UsePathStyle are only needed for
	// S3-compatible stores (MinIO etc.); leave them empty for AWS.
	S3 struct {
		Region          string `json:"region"`
		Bucket          string `json:"bucket"`
		Endpoint        string `json:"endpoint"`
		AccessKeyID     string `json:"accessKeyID"`
		SecretAccessKey string `json:"secretAccessKey"`
		UsePathStyle    bool   `json:"usePathStyle"`
	} `json:"s3"`

	// Orphan reconciliation sweep: removes objects under the upload prefix
	// that never got a registry row.
	Cleanup struct {
		Enable     bool   `json:"enable"`
		Schedule   string `json:"schedule"`   // cron expression, e.g. "0 3 * * *"
		GraceHours int    `json:"graceHours"` // keep unregistered objects younger than this
	} `json:"cleanup"`
}

var (
	once   sync.Once
	config *Config
)

func GetConfig() *Config {
	once.Do(func() {
		config = initConfig()
	})
	return config
}

func IsDebugMode() bool {
	return gin.Mode() == gin.DebugMode
}

// initConfig reads the configuration file. In debug mode it reads
// ./etc/debug-config.yaml (or SPACES_DEBUG_CONFIG_PATH); otherwise it reads
// the config.yaml mounted by the deployment environment.
func initConfig() *Config {
	config := &Config{}
	var configPath string
	if IsDebugMode() {
		if os.Getenv("SPACES_DEBUG_CONFIG_PATH") != "" {
			configPath = os.Getenv("SPACES_DEBUG_CONFIG_PATH")
		} else {
			configPath = "./etc/debug-config.yaml"
		}
	} else {
		configPath = "/etc/config/config.yaml"
	}
	klog.Info("config path: ", configPath)

	err := readConfig(configPath, config)
	if err != nil {
		klog.Error("init config", err)
		panic(err)
	}
	return config
}

func readConfig(filePath string, config *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return err
	}
	return nil
}
