package connectors

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

type OdooConnector struct {
	config OdooConfig
	client *resty.Client

	mu      sync.Mutex
	session Session
	uid     int
}

func NewOdoo(config OdooConfig) *OdooConnector {
	return &OdooConnector{
		config: config,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

func (c *OdooConnector) Configured() bool {
	return c.config.Configured()
}

type odooRpcResponse struct {
	Result interface{} `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// authenticate opens a new Odoo web session. Caller must hold c.mu.
func (c *OdooConnector) authenticate() error {
	if c.session.Valid() {
		return nil
	}

	var body odooRpcResponse
	res, err := c.client.R().
		SetBody(map[string]interface{}{
			"jsonrpc": "2.0",
			"params": map[string]interface{}{
				"db":       c.config.Database,
				"login":    c.config.Username,
				"password": c.config.Password,
			},
		}).
		SetResult(&body).
		Post(c.config.BaseUrl + "/web/session/authenticate")
	if err != nil {
		slog.Error("odoo login request failed", "error", err)
		return fmt.Errorf("error authenticating with odoo: %w", err)
	}
	if res.IsError() || body.Error != nil {
		slog.Error("odoo login rejected", "status", res.StatusCode())
		return fmt.Errorf("odoo login failed with status %v", res.StatusCode())
	}

	result, ok := body.Result.(map[string]interface{})
	if !ok {
		return fmt.Errorf("unexpected odoo login response")
	}
	uid, ok := result["uid"].(float64)
	if !ok {
		return fmt.Errorf("odoo login response missing uid")
	}

	var sessionId string
	for _, cookie := range res.Cookies() {
		if cookie.Name == "session_id" {
			sessionId = cookie.Value
		}
	}
	if sessionId == "" {
		return fmt.Errorf("odoo login response missing session cookie")
	}

	// Odoo web sessions last until idle timeout, refresh conservatively.
	c.session = Session{Token: sessionId, Expiry: time.Now().Add(30 * time.Minute)}
	c.uid = int(uid)

	return nil
}

func (c *OdooConnector) callKw(model, method string, args []interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.authenticate(); err != nil {
		return nil, err
	}

	var body odooRpcResponse
	res, err := c.client.R().
		SetCookie(&http.Cookie{Name: "session_id", Value: c.session.Token}).
		SetBody(map[string]interface{}{
			"jsonrpc": "2.0",
			"params": map[string]interface{}{
				"model":  model,
				"method": method,
				"args":   args,
				"kwargs": map[string]interface{}{},
			},
		}).
		SetResult(&body).
		Post(c.config.BaseUrl + "/web/dataset/call_kw")
	if err != nil {
		slog.Error("odoo rpc request failed", "model", model, "method", method, "error", err)
		return nil, fmt.Errorf("error calling odoo %v.%v: %w", model, method, err)
	}
	if res.IsError() || body.Error != nil {
		if res.StatusCode() == 401 {
			c.session = Session{}
		}
		slog.Error("odoo rpc rejected", "model", model, "method", method, "status", res.StatusCode())
		return nil, fmt.Errorf("odoo rejected %v.%v with status %v", model, method, res.StatusCode())
	}

	return body.Result, nil
}

// CreateLead pushes a crm.lead record summarizing template feedback.
func (c *OdooConnector) CreateLead(name, description, email string) (int, error) {
	fields := map[string]interface{}{
		"name":        name,
		"description": description,
	}
	if email != "" {
		fields["email_from"] = email
	}

	result, err := c.callKw("crm.lead", "create", []interface{}{fields})
	if err != nil {
		return 0, err
	}

	id, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected response creating odoo lead")
	}

	return int(id), nil
}
