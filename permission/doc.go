// Package permission defines the closed permission set of the tracker, the
// three roles and the mask each role grants.
//
// # Roles
//
//	developer  read everything, file issues, comment
//	manager    everything except user management
//	admin      everything
//
// Checks are plain functions over a role and a list of permissions; callers
// run them explicitly at the top of each protected operation.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import authcore, jwt, or session.
package permission
