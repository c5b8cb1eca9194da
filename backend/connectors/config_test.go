package connectors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integrations.yaml")
	data := `
jira:
  base_url: https://corp.atlassian.net
  email: bot@corp.com
  api_token: token123
  project_key: SUP
odoo:
  base_url: https://odoo.corp.com
  database: prod
  username: bot
  password: secret
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, config.Jira.Configured())
	assert.Equal(t, "SUP", config.Jira.ProjectKey)
	assert.True(t, config.Odoo.Configured())
	assert.False(t, config.Salesforce.Configured())
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integrations.yaml")
	data := `
jira:
  base_url: https://corp.atlassian.net
  email: bot@corp.com
  api_token: from-file
  project_key: SUP
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	t.Setenv("JIRA_API_TOKEN", "from-env")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.Jira.ApiToken)
	assert.Equal(t, "SUP", config.Jira.ProjectKey)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	t.Setenv("SALESFORCE_LOGIN_URL", "https://login.salesforce.com")
	t.Setenv("SALESFORCE_CLIENT_ID", "client")
	t.Setenv("SALESFORCE_CLIENT_SECRET", "secret")
	t.Setenv("SALESFORCE_USERNAME", "bot@corp.com")
	t.Setenv("SALESFORCE_PASSWORD", "password")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.True(t, config.Salesforce.Configured())
	assert.False(t, config.Jira.Configured())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/does/not/exist.yaml")
	require.Error(t, err)
}
