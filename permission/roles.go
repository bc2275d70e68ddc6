package permission

// Role is one of the closed set of account roles.
type Role string

const (
	RoleDeveloper Role = "developer"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

var roleMasks = map[Role]Mask64{
	RoleDeveloper: MaskOf(
		ViewProjects,
		ViewIssues,
		CreateIssue,
		ViewComments,
		AddComment,
		ViewUsers,
	),
	RoleManager: MaskOf(
		ViewProjects,
		CreateProject,
		EditProject,
		ArchiveProject,
		ViewIssues,
		CreateIssue,
		EditIssue,
		ChangeAssignee,
		ViewComments,
		AddComment,
		EditComment,
		ViewUsers,
	),
	RoleAdmin: MaskOf(All()...),
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleMasks[r]
	return ok
}

// MaskFor returns the permissions granted to r. Unknown roles get an empty mask.
func MaskFor(r Role) Mask64 {
	return roleMasks[r]
}

// RoleHasAll reports whether r grants every perm.
func RoleHasAll(r Role, perms ...Permission) bool {
	if !r.Valid() {
		return false
	}
	return MaskFor(r).HasAll(perms...)
}

// RoleHasAny reports whether r grants at least one perm.
func RoleHasAny(r Role, perms ...Permission) bool {
	return MaskFor(r).HasAny(perms...)
}
