package tests

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"formhub/backend/services"
)

func sortUserList(users []services.UserInfo) {
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
}

func TestSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		username := fmt.Sprintf("user%d", i)
		email := fmt.Sprintf("user%d@mail.com", i)
		password := fmt.Sprintf("user%d_password", i)

		client := env.newClient()
		login, err := client.signup(username, email, password)
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.signup(username, email, password)
		if err == nil {
			t.Fatal("duplicate signup should fail")
		}

		err = client.login(loginInfo{Email: "user@mail.com", Password: password})
		if err == nil {
			t.Fatal("login should fail with wrong email")
		}

		err = client.login(loginInfo{Email: email, Password: "password"})
		if err == nil {
			t.Fatal("login should fail with wrong password")
		}

		err = client.login(login)
		if err != nil {
			t.Fatal(err)
		}

		info, err := client.userInfo()
		if err != nil {
			t.Fatal(err)
		}

		if info.Username != username || info.Email != email || info.Id.String() != client.userId || info.Admin {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestAddUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}
	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	client := env.newClient()

	_, err = user.addUser("xyz", "xyz@mail.com", "123")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users cannot add users")
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err == nil {
		t.Fatal("no login should be created")
	}

	_, err = admin.addUser("xyz", "xyz@mail.com", "123")
	if err != nil {
		t.Fatal(err)
	}

	err = client.login(loginInfo{Email: "xyz@mail.com", Password: "123"})
	if err != nil {
		t.Fatal("new user should be created")
	}
}

func TestListUsers(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.newUser("xyz")
	if err != nil {
		t.Fatal(err)
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 3 {
		t.Fatal("expected 3 users")
	}
	sortUserList(users)
	if users[0].Username != "abc" || users[1].Username != adminUsername || users[2].Username != "xyz" {
		t.Fatalf("invalid user list %v", users)
	}

	client := env.newClient()
	_, err = client.listUsers()
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("expected unauthorized error")
	}
}

func checkAdminStatus(c client, t *testing.T, isAdmin bool) {
	info, err := c.userInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Admin != isAdmin {
		t.Fatalf("expected Admin to be %v, got %v", isAdmin, info.Admin)
	}
}

func TestPromoteDemoteAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user1, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	user2, err := env.newUser("xyz")
	if err != nil {
		t.Fatal(err)
	}

	err = user1.promoteAdmin(user1.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users can't promote admins")
	}

	checkAdminStatus(admin, t, true)
	checkAdminStatus(user1, t, false)
	checkAdminStatus(user2, t, false)

	err = admin.promoteAdmin(user1.userId)
	if err != nil {
		t.Fatalf("admin should be able to promote admin: %v", err)
	}

	checkAdminStatus(user1, t, true)

	err = user1.promoteAdmin(user2.userId)
	if err != nil {
		t.Fatal("new admin should be able to promote admin")
	}

	err = admin.demoteAdmin(user1.userId)
	if err != nil {
		t.Fatalf("admin should be demoted %v", err)
	}

	checkAdminStatus(user1, t, false)
	checkAdminStatus(user2, t, true)

	err = user1.demoteAdmin(user2.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("non admin cannot demote admin")
	}
}

func TestLastAdminCannotBeDemotedOrDeleted(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	err = admin.demoteAdmin(admin.userId)
	if err == nil {
		t.Fatal("last admin cannot be demoted")
	}

	err = admin.deleteUser(admin.userId)
	if err == nil {
		t.Fatal("last admin cannot be deleted")
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.promoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.demoteAdmin(admin.userId)
	if err != nil {
		t.Fatal("demoting with a second admin present should succeed")
	}
}

func TestBlockUnblockUser(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = user.blockUser(user.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users cannot block users")
	}

	err = admin.blockUser(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.userInfo()
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("blocked user should be rejected: %v", err)
	}

	err = user.login(loginInfo{Email: "abc@mail.com", Password: "abc_password"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("blocked user should not be able to login: %v", err)
	}

	err = admin.unblockUser(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = user.login(loginInfo{Email: "abc@mail.com", Password: "abc_password"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := user.userInfo(); err != nil {
		t.Fatal(err)
	}
}

func TestCannotBlockAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	err = admin.promoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.blockUser(user.userId)
	if err == nil {
		t.Fatal("admins cannot be blocked without being demoted first")
	}

	err = admin.demoteAdmin(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.blockUser(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	err = admin.blockUser(user.userId)
	if err != nil {
		t.Fatal("blocking an already blocked user is a no-op")
	}
}

func TestDeleteUserRemovesTemplates(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	user, err := env.newUser("abc")
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createTemplate(templateSpec{Title: "t1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = user.createTemplate(templateSpec{Title: "t2"})
	if err != nil {
		t.Fatal(err)
	}

	templates, err := admin.listTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(templates))
	}

	err = user.deleteUser(user.userId)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("users cannot delete users")
	}

	err = admin.deleteUser(user.userId)
	if err != nil {
		t.Fatal(err)
	}

	templates, err = admin.listTemplates("")
	if err != nil {
		t.Fatal(err)
	}
	if len(templates) != 0 {
		t.Fatalf("expected templates to be removed with their owner, got %d", len(templates))
	}

	users, err := admin.listUsers()
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Username != adminUsername {
		t.Fatalf("invalid users %v", users)
	}
}
