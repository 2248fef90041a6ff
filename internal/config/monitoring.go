package config

type MonitoringConfig struct {
	NewRelicEnabled    bool   `yaml:"newrelic_enabled"`
	NewRelicAppName    string `yaml:"newrelic_app_name"`
	NewRelicLicenseKey string `yaml:"newrelic_license_key"`
}

func loadMonitoringConfig() *MonitoringConfig {
	return &MonitoringConfig{
		NewRelicEnabled:    getEnvAsBool("NEW_RELIC_ENABLED", false),
		NewRelicAppName:    getEnv("NEW_RELIC_APP_NAME", "carhire"),
		NewRelicLicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
	}
}
