package connectors

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type JiraConfig struct {
	BaseUrl    string `yaml:"base_url" env:"JIRA_BASE_URL"`
	Email      string `yaml:"email" env:"JIRA_EMAIL"`
	ApiToken   string `yaml:"api_token" env:"JIRA_API_TOKEN"`
	ProjectKey string `yaml:"project_key" env:"JIRA_PROJECT_KEY"`
}

func (c *JiraConfig) Configured() bool {
	return c.BaseUrl != "" && c.Email != "" && c.ApiToken != "" && c.ProjectKey != ""
}

type SalesforceConfig struct {
	LoginUrl     string `yaml:"login_url" env:"SALESFORCE_LOGIN_URL"`
	ClientId     string `yaml:"client_id" env:"SALESFORCE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"SALESFORCE_CLIENT_SECRET"`
	Username     string `yaml:"username" env:"SALESFORCE_USERNAME"`
	Password     string `yaml:"password" env:"SALESFORCE_PASSWORD"`
}

func (c *SalesforceConfig) Configured() bool {
	return c.LoginUrl != "" && c.ClientId != "" && c.ClientSecret != "" && c.Username != "" && c.Password != ""
}

type OdooConfig struct {
	BaseUrl  string `yaml:"base_url" env:"ODOO_BASE_URL"`
	Database string `yaml:"database" env:"ODOO_DATABASE"`
	Username string `yaml:"username" env:"ODOO_USERNAME"`
	Password string `yaml:"password" env:"ODOO_PASSWORD"`
}

func (c *OdooConfig) Configured() bool {
	return c.BaseUrl != "" && c.Database != "" && c.Username != "" && c.Password != ""
}

type Config struct {
	Jira       JiraConfig       `yaml:"jira"`
	Salesforce SalesforceConfig `yaml:"salesforce"`
	Odoo       OdooConfig       `yaml:"odoo"`
}

// LoadConfig reads the connector config from a yaml file, if one is given,
// then applies env variable overrides on top of it. Credentials can thus be
// supplied entirely through the environment without a config file.
func LoadConfig(path string) (Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading connector config %v: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error parsing connector config %v: %w", path, err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, fmt.Errorf("error reading connector env variables: %w", err)
	}

	return config, nil
}
