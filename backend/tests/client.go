package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"formhub/backend/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		if res.StatusCode == http.StatusForbidden {
			return ErrForbidden
		}
		if res.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) signup(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(login loginInfo) error {
	var res map[string]string
	err := c.Get("/user/login").Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) addUser(username, email, password string) (loginInfo, error) {
	body := map[string]string{
		"email": email, "username": username, "password": password,
	}

	err := c.Post("/user/create").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) deleteUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v", userId)).Do(nil)
}

func (c *client) promoteAdmin(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) demoteAdmin(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/admin", userId)).Do(nil)
}

func (c *client) blockUser(userId string) error {
	return c.Post(fmt.Sprintf("/user/%v/block", userId)).Do(nil)
}

func (c *client) unblockUser(userId string) error {
	return c.Delete(fmt.Sprintf("/user/%v/block", userId)).Do(nil)
}

func (c *client) listUsers() ([]services.UserInfo, error) {
	var res []services.UserInfo
	err := c.Get("/user/list").Do(&res)
	return res, err
}

func (c *client) userInfo() (services.UserInfo, error) {
	var res services.UserInfo
	err := c.Get("/user/info").Do(&res)
	return res, err
}

type questionSpec struct {
	Type    string   `json:"type"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Visible *bool    `json:"visible,omitempty"`
}

type templateSpec struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Topic       string         `json:"topic"`
	Tags        []string       `json:"tags"`
	Questions   []questionSpec `json:"questions"`
}

func (c *client) createTemplate(template templateSpec) (string, error) {
	var res map[string]string
	err := c.Post("/template/create").Json(template).Do(&res)
	return res["template_id"], err
}

func (c *client) updateTemplate(templateId string, template templateSpec) error {
	return c.Post(fmt.Sprintf("/template/%v/update", templateId)).Json(template).Do(nil)
}

func (c *client) deleteTemplate(templateId string) error {
	return c.Delete(fmt.Sprintf("/template/%v", templateId)).Do(nil)
}

func (c *client) getTemplate(templateId string) (services.TemplateInfo, error) {
	var res services.TemplateInfo
	err := c.Get(fmt.Sprintf("/template/%v", templateId)).Do(&res)
	return res, err
}

func (c *client) listTemplates(query string) ([]services.TemplateInfo, error) {
	endpoint := "/template/list"
	if query != "" {
		endpoint += "?" + query
	}
	var res []services.TemplateInfo
	err := c.Get(endpoint).Do(&res)
	return res, err
}

func (c *client) setAccessRule(templateId, userId string, canAccess bool) error {
	body := map[string]interface{}{"user_id": userId, "can_access": canAccess}
	return c.Post(fmt.Sprintf("/template/%v/access", templateId)).Json(body).Do(nil)
}

func (c *client) deleteAccessRule(templateId, userId string) error {
	return c.Delete(fmt.Sprintf("/template/%v/access/%v", templateId, userId)).Do(nil)
}

func (c *client) getAccessRules(templateId string) ([]services.AccessRuleInfo, error) {
	var res []services.AccessRuleInfo
	err := c.Get(fmt.Sprintf("/template/%v/access", templateId)).Do(&res)
	return res, err
}

func (c *client) likeTemplate(templateId string) error {
	return c.Post(fmt.Sprintf("/template/%v/like", templateId)).Do(nil)
}

func (c *client) unlikeTemplate(templateId string) error {
	return c.Delete(fmt.Sprintf("/template/%v/like", templateId)).Do(nil)
}

func (c *client) addComment(templateId, content string) (string, error) {
	body := map[string]string{"content": content}
	var res map[string]string
	err := c.Post(fmt.Sprintf("/template/%v/comment", templateId)).Json(body).Do(&res)
	return res["comment_id"], err
}

func (c *client) deleteComment(templateId, commentId string) error {
	return c.Delete(fmt.Sprintf("/template/%v/comment/%v", templateId, commentId)).Do(nil)
}

func (c *client) listComments(templateId string) ([]services.CommentInfo, error) {
	var res []services.CommentInfo
	err := c.Get(fmt.Sprintf("/template/%v/comments", templateId)).Do(&res)
	return res, err
}

func (c *client) uploadImage(templateId, filename string, data []byte) error {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	return c.Post(fmt.Sprintf("/template/%v/image", templateId)).
		Header("Content-Type", writer.FormDataContentType()).
		Body(body).
		Do(nil)
}

func (c *client) getImage(templateId string) ([]byte, error) {
	endpoint := fmt.Sprintf("/template/%v/image", templateId)
	req := httptest.NewRequest("GET", endpoint, nil)
	if c.authToken != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %v", c.authToken))
	}
	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %v failed with status %d and res '%v'", endpoint, res.StatusCode, w.Body.String())
	}

	return io.ReadAll(w.Body)
}

func (c *client) submitResponse(templateId string, answers map[string]string) (string, error) {
	body := map[string]interface{}{"answers": answers}
	var res map[string]string
	err := c.Post(fmt.Sprintf("/response/%v/submit", templateId)).Json(body).Do(&res)
	return res["response_id"], err
}

func (c *client) listResponses(templateId string) ([]services.ResponseInfo, error) {
	var res []services.ResponseInfo
	err := c.Get(fmt.Sprintf("/response/%v/list", templateId)).Do(&res)
	return res, err
}

type responseSummary struct {
	TemplateId    string                     `json:"template_id"`
	ResponseCount int                        `json:"response_count"`
	Questions     []services.QuestionSummary `json:"questions"`
}

func (c *client) responseSummary(templateId string) (responseSummary, error) {
	var res responseSummary
	err := c.Get(fmt.Sprintf("/response/%v/summary", templateId)).Do(&res)
	return res, err
}

func (c *client) createTicket(summary, description, priority, link string) (string, error) {
	body := map[string]string{
		"summary": summary, "description": description, "priority": priority, "link": link,
	}
	var res map[string]string
	err := c.Post("/integration/ticket").Json(body).Do(&res)
	return res["ticket"], err
}

func (c *client) crmExport(company, phone, website, firstName, lastName, email string) (map[string]string, error) {
	body := map[string]string{
		"company": company, "phone": phone, "website": website,
		"first_name": firstName, "last_name": lastName, "email": email,
	}
	var res map[string]string
	err := c.Post("/integration/crm").Json(body).Do(&res)
	return res, err
}
