package permission

// Role is the org-wide role of a user account. Group chats carry their own
// per-member roles; these are the coarse account roles checked on every route.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTeamLead   Role = "team_lead"
	RoleDeveloper  Role = "developer"
	RoleViewer     Role = "viewer"
)

type Permission string

const (
	TasksView   Permission = "tasks.view"
	TasksCreate Permission = "tasks.create"
	TasksAssign Permission = "tasks.assign"
	TasksDelete Permission = "tasks.delete"

	ProjectsView   Permission = "projects.view"
	ProjectsManage Permission = "projects.manage"

	ChatView    Permission = "chat.view"
	ChatRequest Permission = "chat.request"
	ChatSend    Permission = "chat.send"

	GroupsCreate Permission = "groups.create"
	GroupsManage Permission = "groups.manage"

	UsersView   Permission = "users.view"
	UsersManage Permission = "users.manage"

	FilesUpload Permission = "files.upload"
)

type permSet map[Permission]struct{}

func set(perms ...Permission) permSet {
	s := make(permSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func union(base permSet, extra ...Permission) permSet {
	s := make(permSet, len(base)+len(extra))
	for p := range base {
		s[p] = struct{}{}
	}
	for _, p := range extra {
		s[p] = struct{}{}
	}
	return s
}

// The table is built once at init and never mutated afterwards, so it is
// safe for unbounded concurrent readers. Each role stores its full
// flattened set; there is no runtime inheritance chain to audit.
var table map[Role]permSet

func init() {
	viewer := set(TasksView, ProjectsView, ChatView, UsersView)
	developer := union(viewer, TasksCreate, ChatRequest, ChatSend, GroupsCreate, FilesUpload)
	teamLead := union(developer, TasksAssign, GroupsManage)
	manager := union(teamLead, ProjectsManage)
	admin := union(manager, TasksDelete, UsersManage)
	superAdmin := union(admin)

	table = map[Role]permSet{
		RoleViewer:     viewer,
		RoleDeveloper:  developer,
		RoleTeamLead:   teamLead,
		RoleManager:    manager,
		RoleAdmin:      admin,
		RoleSuperAdmin: superAdmin,
	}
}

func setFor(role Role) permSet {
	if s, ok := table[role]; ok {
		return s
	}
	// Unknown roles get the most restrictive set.
	return table[RoleViewer]
}

func Has(role Role, perm Permission) bool {
	_, ok := setFor(role)[perm]
	return ok
}

func HasAny(role Role, perms ...Permission) bool {
	s := setFor(role)
	for _, p := range perms {
		if _, ok := s[p]; ok {
			return true
		}
	}
	return false
}

func HasAll(role Role, perms ...Permission) bool {
	s := setFor(role)
	for _, p := range perms {
		if _, ok := s[p]; !ok {
			return false
		}
	}
	return true
}
