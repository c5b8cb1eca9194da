package connectors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJiraCreateTicket(t *testing.T) {
	var gotIssue map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue" {
			http.NotFound(w, r)
			return
		}
		user, token, ok := r.BasicAuth()
		if !ok || user != "bot@corp.com" || token != "apitoken" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotIssue); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "10001", "key": "SUP-42"})
	}))
	defer server.Close()

	connector := NewJira(JiraConfig{
		BaseUrl:    server.URL,
		Email:      "bot@corp.com",
		ApiToken:   "apitoken",
		ProjectKey: "SUP",
	})

	key, err := connector.CreateTicket("broken form", "the form does not load", "")
	if err != nil {
		t.Fatal(err)
	}
	if key != "SUP-42" {
		t.Fatalf("invalid ticket key %v", key)
	}

	fields, ok := gotIssue["fields"].(map[string]interface{})
	if !ok {
		t.Fatalf("invalid issue payload %v", gotIssue)
	}
	if fields["summary"] != "broken form" {
		t.Fatalf("invalid summary %v", fields["summary"])
	}
	project, _ := fields["project"].(map[string]interface{})
	if project["key"] != "SUP" {
		t.Fatalf("invalid project %v", fields["project"])
	}
	priority, _ := fields["priority"].(map[string]interface{})
	if priority["name"] != "Medium" {
		t.Fatalf("priority should default to Medium, got %v", fields["priority"])
	}
}

func TestJiraCreateTicketRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"errorMessages":["field required"]}`, http.StatusBadRequest)
	}))
	defer server.Close()

	connector := NewJira(JiraConfig{
		BaseUrl:    server.URL,
		Email:      "bot@corp.com",
		ApiToken:   "apitoken",
		ProjectKey: "SUP",
	})

	if _, err := connector.CreateTicket("broken form", "details", "High"); err == nil {
		t.Fatal("rejected issue creation should return an error")
	}
}
