package connectors

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type SalesforceConnector struct {
	config SalesforceConfig
	client *resty.Client

	mu          sync.Mutex
	session     Session
	instanceUrl string
}

func NewSalesforce(config SalesforceConfig) *SalesforceConnector {
	return &SalesforceConnector{
		config: config,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

func (c *SalesforceConnector) Configured() bool {
	return c.config.Configured()
}

type salesforceLoginResponse struct {
	AccessToken string `json:"access_token"`
	InstanceUrl string `json:"instance_url"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// authenticate refreshes the session using the OAuth password grant. Caller
// must hold c.mu.
func (c *SalesforceConnector) authenticate() error {
	if c.session.Valid() {
		return nil
	}

	var body salesforceLoginResponse
	res, err := c.client.R().
		SetFormData(map[string]string{
			"grant_type":    "password",
			"client_id":     c.config.ClientId,
			"client_secret": c.config.ClientSecret,
			"username":      c.config.Username,
			"password":      c.config.Password,
		}).
		SetResult(&body).
		SetError(&body).
		Post(c.config.LoginUrl + "/services/oauth2/token")
	if err != nil {
		slog.Error("salesforce login request failed", "error", err)
		return fmt.Errorf("error authenticating with salesforce: %w", err)
	}
	if res.IsError() {
		slog.Error("salesforce login rejected", "status", res.StatusCode(), "error", body.Error)
		return fmt.Errorf("salesforce login failed: %v", body.Description)
	}

	// Salesforce does not return the token lifetime with the password grant,
	// the default session timeout is 2 hours, refresh well before that.
	c.session = Session{Token: body.AccessToken, Expiry: time.Now().Add(30 * time.Minute)}
	c.instanceUrl = body.InstanceUrl

	return nil
}

type salesforceCreateResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

func (c *SalesforceConnector) createObject(object string, fields map[string]interface{}) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authenticate(); err != nil {
		return "", err
	}

	var body salesforceCreateResponse
	res, err := c.client.R().
		SetAuthToken(c.session.Token).
		SetBody(fields).
		SetResult(&body).
		Post(fmt.Sprintf("%v/services/data/v58.0/sobjects/%v", c.instanceUrl, object))
	if err != nil {
		slog.Error("salesforce create request failed", "object", object, "error", err)
		return "", fmt.Errorf("error creating salesforce %v: %w", object, err)
	}
	if res.IsError() {
		// Discard the session on auth failures so the next call logs in again.
		if res.StatusCode() == 401 {
			c.session = Session{}
		}
		slog.Error("salesforce create rejected", "object", object, "status", res.StatusCode())
		return "", fmt.Errorf("salesforce rejected %v creation with status %v", object, res.StatusCode())
	}

	return body.Id, nil
}

func (c *SalesforceConnector) CreateAccount(name, phone, website string) (string, error) {
	fields := map[string]interface{}{"Name": name}
	if phone != "" {
		fields["Phone"] = phone
	}
	if website != "" {
		fields["Website"] = website
	}
	return c.createObject("Account", fields)
}

func (c *SalesforceConnector) CreateContact(accountId, firstName, lastName, email string) (string, error) {
	fields := map[string]interface{}{
		"AccountId": accountId,
		"LastName":  lastName,
		"Email":     email,
	}
	if firstName != "" {
		fields["FirstName"] = firstName
	}
	return c.createObject("Contact", fields)
}
