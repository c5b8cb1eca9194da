package tests

import (
	"errors"
	"testing"
)

func TestTemplateWithNoRulesIsPublic(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(basicTemplate("t1"))
	if err != nil {
		t.Fatal(err)
	}

	anon := env.newClient()
	if _, err := anon.getTemplate(templateId); err != nil {
		t.Fatalf("anonymous viewers can see templates with no rules: %v", err)
	}

	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.getTemplate(templateId); err != nil {
		t.Fatalf("any user can see templates with no rules: %v", err)
	}
}

func TestAccessRulesRestrictViewing(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	allowed, err := env.newUser("allowed")
	if err != nil {
		t.Fatal(err)
	}

	denied, err := env.newUser("denied")
	if err != nil {
		t.Fatal(err)
	}

	unlisted, err := env.newUser("unlisted")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(basicTemplate("t1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.setAccessRule(templateId, allowed.userId, true); err != nil {
		t.Fatal(err)
	}
	if err := owner.setAccessRule(templateId, denied.userId, false); err != nil {
		t.Fatal(err)
	}

	if _, err := allowed.getTemplate(templateId); err != nil {
		t.Fatalf("user with can_access rule should see the template: %v", err)
	}

	if _, err := denied.getTemplate(templateId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user with deny rule should not see the template: %v", err)
	}

	if _, err := unlisted.getTemplate(templateId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unlisted user should not see a restricted template: %v", err)
	}

	anon := env.newClient()
	if _, err := anon.getTemplate(templateId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous viewers should not see a restricted template: %v", err)
	}

	if _, err := owner.getTemplate(templateId); err != nil {
		t.Fatalf("owner always sees the template: %v", err)
	}

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := admin.getTemplate(templateId); err != nil {
		t.Fatalf("admin always sees the template: %v", err)
	}
}

func TestAccessRulesFilterListing(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	allowed, err := env.newUser("allowed")
	if err != nil {
		t.Fatal(err)
	}

	public, err := owner.createTemplate(basicTemplate("public"))
	if err != nil {
		t.Fatal(err)
	}

	restricted, err := owner.createTemplate(basicTemplate("restricted"))
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.setAccessRule(restricted, allowed.userId, true); err != nil {
		t.Fatal(err)
	}

	anon := env.newClient()
	templates, err := anon.listTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 1 || templates[0].Id.String() != public {
		t.Fatalf("anonymous listing should only contain public templates %v", templates)
	}

	templates, err = allowed.listTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 2 {
		t.Fatalf("allowed user should see both templates %v", templates)
	}

	templates, err = owner.listTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 2 {
		t.Fatalf("owner should see both templates %v", templates)
	}
}

func TestSetAccessRuleValidation(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(basicTemplate("t1"))
	if err != nil {
		t.Fatal(err)
	}

	err = other.setAccessRule(templateId, other.userId, true)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("only the owner can set access rules")
	}

	err = owner.setAccessRule(templateId, owner.userId, true)
	if err == nil {
		t.Fatal("rules for the template owner should be rejected")
	}

	err = owner.setAccessRule(templateId, "8b9f42ce-98f1-4b62-9c29-c1c0a4b9b27a", true)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("rules for unknown users should be rejected: %v", err)
	}

	err = owner.deleteAccessRule(templateId, other.userId)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleting a rule that does not exist should fail: %v", err)
	}
}

func TestSetAccessRuleUpsertsSingleRow(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(basicTemplate("t1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.setAccessRule(templateId, other.userId, true); err != nil {
		t.Fatal(err)
	}

	if _, err := other.getTemplate(templateId); err != nil {
		t.Fatalf("user with can_access rule should see the template: %v", err)
	}

	if err := owner.setAccessRule(templateId, other.userId, false); err != nil {
		t.Fatal(err)
	}

	rules, err := owner.getAccessRules(templateId)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected exactly one rule after resetting the same pair, got %v", rules)
	}
	if rules[0].UserId.String() != other.userId || rules[0].CanAccess {
		t.Fatalf("expected the rule to be overwritten with can_access=false, got %+v", rules[0])
	}

	if _, err := other.getTemplate(templateId); !errors.Is(err, ErrForbidden) {
		t.Fatalf("overwritten rule should deny access: %v", err)
	}
}

func TestClearingRulesMakesTemplatePublicAgain(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	other, err := env.newUser("other")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(basicTemplate("t1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.setAccessRule(templateId, other.userId, false); err != nil {
		t.Fatal(err)
	}

	if _, err := other.getTemplate(templateId); !errors.Is(err, ErrForbidden) {
		t.Fatal("template should be restricted")
	}

	if err := owner.deleteAccessRule(templateId, other.userId); err != nil {
		t.Fatal(err)
	}

	if _, err := other.getTemplate(templateId); err != nil {
		t.Fatalf("template should be public again: %v", err)
	}

	rules, err := owner.getAccessRules(templateId)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 0 {
		t.Fatalf("expected no rules, got %v", rules)
	}
}

func TestAccessRulesDoNotGrantEditing(t *testing.T) {
	env := setupTestEnv(t)

	owner, err := env.newUser("owner")
	if err != nil {
		t.Fatal(err)
	}

	viewer, err := env.newUser("viewer")
	if err != nil {
		t.Fatal(err)
	}

	templateId, err := owner.createTemplate(basicTemplate("t1"))
	if err != nil {
		t.Fatal(err)
	}

	if err := owner.setAccessRule(templateId, viewer.userId, true); err != nil {
		t.Fatal(err)
	}

	err = viewer.updateTemplate(templateId, basicTemplate("t1 v2"))
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("viewing access does not grant editing")
	}

	err = viewer.deleteTemplate(templateId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("viewing access does not grant deletion")
	}

	_, err = viewer.getAccessRules(templateId)
	if !errors.Is(err, ErrForbidden) {
		t.Fatal("viewing access does not grant rule management")
	}
}
