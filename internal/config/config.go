package config

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppConfig     *AppConfig
	ServerConfig  *ServerConfig
	BrowserConfig *BrowserConfig
	ClientConfig  *ClientConfig
}

type AppConfig struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	Debug          bool   `envconfig:"DEBUG" default:"false"`
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
}

type ServerConfig struct {
	BaseURL         string `envconfig:"SWEER_BASEURL" default:"http://localhost:8009"`
	ListenHost      string `envconfig:"SWEER_LISTEN_HOST" default:"0.0.0.0"`
	ShutdownTimeout int    `envconfig:"SWEER_SHUTDOWN_TIMEOUT" default:"10"`
}

type BrowserConfig struct {
	Headless             bool `envconfig:"BROWSER_HEADLESS" default:"true"`
	InstallDriver        bool `envconfig:"SWEER_INSTALL_DRIVER" default:"true"`
	LocateElementTimeout int  `envconfig:"SWEER_LOCATE_ELEMENT_TIMEOUT" default:"1"`
	TypeTimeout          int  `envconfig:"SWEER_TYPE_TIMEOUT" default:"10"`
	SettleDelayMs        int  `envconfig:"SWEER_SETTLE_DELAY_MS" default:"300"`
	NavigationTimeoutMs  int  `envconfig:"SWEER_NAVIGATION_TIMEOUT_MS" default:"30000"`
	OverlayTextLength    int  `envconfig:"SWEER_MAX_OVERLAY_INFO_TEXT_LENGTH" default:"50"`
	ViewportWidth        int  `envconfig:"SWEER_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight       int  `envconfig:"SWEER_VIEWPORT_HEIGHT" default:"720"`
}

type ClientConfig struct {
	AutoScreenshot bool `envconfig:"SWEER_AUTOSCREENSHOT" default:"false"`
	RequestTimeout int  `envconfig:"SWEER_CLIENT_TIMEOUT" default:"60"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if _, err := conf.ServerConfig.ListenAddr(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &conf, nil
}

// ListenAddr derives the bind address from the port of BaseURL.
func (c *ServerConfig) ListenAddr() (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse SWEER_BASEURL %q: %w", c.BaseURL, err)
	}

	port := u.Port()
	if port == "" {
		return "", fmt.Errorf("SWEER_BASEURL %q has no port", c.BaseURL)
	}

	return net.JoinHostPort(c.ListenHost, port), nil
}

func (c *BrowserConfig) LocateTimeout() time.Duration {
	return time.Duration(c.LocateElementTimeout) * time.Second
}

func (c *BrowserConfig) TypeWait() time.Duration {
	return time.Duration(c.TypeTimeout) * time.Second
}

func (c *BrowserConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *BrowserConfig) NavigationTimeout() time.Duration {
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}
