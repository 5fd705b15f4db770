package permission_test

import (
	"testing"

	"github.com/workhub/workhub/internal/permission"
)

func TestViewerIsReadOnly(t *testing.T) {
	if !permission.Has(permission.RoleViewer, permission.TasksView) {
		t.Error("viewer should see tasks")
	}
	if permission.Has(permission.RoleViewer, permission.ChatSend) {
		t.Error("viewer must not send chat messages")
	}
	if permission.Has(permission.RoleViewer, permission.TasksDelete) {
		t.Error("viewer must not delete tasks")
	}
}

func TestRoleSetsAreCumulative(t *testing.T) {
	ordered := []permission.Role{
		permission.RoleViewer,
		permission.RoleDeveloper,
		permission.RoleTeamLead,
		permission.RoleManager,
		permission.RoleAdmin,
		permission.RoleSuperAdmin,
	}
	probes := []permission.Permission{
		permission.TasksView,
		permission.ChatSend,
		permission.TasksAssign,
		permission.ProjectsManage,
		permission.UsersManage,
	}
	// Every permission held by a role must also be held by all roles above it.
	for i, lower := range ordered {
		for _, higher := range ordered[i+1:] {
			for _, p := range probes {
				if permission.Has(lower, p) && !permission.Has(higher, p) {
					t.Errorf("%s has %s but %s does not", lower, p, higher)
				}
			}
		}
	}
}

func TestUnknownRoleFallsBackToViewer(t *testing.T) {
	if permission.Has(permission.Role("intern"), permission.ChatSend) {
		t.Error("unknown role must not gain chat.send")
	}
	if !permission.Has(permission.Role("intern"), permission.TasksView) {
		t.Error("unknown role should keep viewer permissions")
	}
}

func TestHasAnyHasAll(t *testing.T) {
	r := permission.RoleDeveloper
	if !permission.HasAny(r, permission.TasksDelete, permission.ChatSend) {
		t.Error("developer has chat.send, HasAny should pass")
	}
	if permission.HasAll(r, permission.ChatSend, permission.TasksDelete) {
		t.Error("developer lacks tasks.delete, HasAll should fail")
	}
	if !permission.HasAll(r, permission.ChatSend, permission.TasksCreate) {
		t.Error("developer has both chat.send and tasks.create")
	}
}
