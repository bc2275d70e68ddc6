package permission

// Permission is one capability. Its value is the bit it occupies in a [Mask64].
type Permission int

const (
	ViewProjects Permission = iota
	CreateProject
	EditProject
	ArchiveProject

	ViewIssues
	CreateIssue
	EditIssue
	ChangeAssignee

	ViewComments
	AddComment
	EditComment

	ViewUsers
	ManageUsers

	permissionCount
)

var permissionNames = [permissionCount]string{
	ViewProjects:   "view_projects",
	CreateProject:  "create_project",
	EditProject:    "edit_project",
	ArchiveProject: "archive_project",
	ViewIssues:     "view_issues",
	CreateIssue:    "create_issue",
	EditIssue:      "edit_issue",
	ChangeAssignee: "change_assignee",
	ViewComments:   "view_comments",
	AddComment:     "add_comment",
	EditComment:    "edit_comment",
	ViewUsers:      "view_users",
	ManageUsers:    "manage_users",
}

// String returns the wire name, e.g. "create_issue".
func (p Permission) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return permissionNames[p]
}

// Valid reports whether p is a defined permission.
func (p Permission) Valid() bool {
	return p >= 0 && p < permissionCount
}

// Parse maps a wire name back to its Permission.
func Parse(name string) (Permission, bool) {
	for i, n := range permissionNames {
		if n == name {
			return Permission(i), true
		}
	}
	return 0, false
}

// All returns every defined permission in declaration order.
func All() []Permission {
	out := make([]Permission, permissionCount)
	for i := range out {
		out[i] = Permission(i)
	}
	return out
}
