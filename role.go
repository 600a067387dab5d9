package statsclient

// Roles known to the backend. Unknown roles are treated as RolePlayer, as the backend
// does.
const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
	RoleUser   = "user"
)

var (
	playerEndpoints = []string{EndpointPlayerStats, EndpointUserInfo}
	adminEndpoints  = []string{EndpointPlayerStats, EndpointUserInfo, EndpointAdminPanel, EndpointSQLQuery}
)

// RoleEndpoints lists the endpoints role is expected to reach. It is a display hint; the
// backend is the only authority.
func RoleEndpoints(role string) []string {
	src := playerEndpoints
	if role == RoleAdmin {
		src = adminEndpoints
	}
	return append([]string(nil), src...)
}

// RoleCanAccess reports whether endpoint is listed for role.
func RoleCanAccess(role, endpoint string) bool {
	for _, e := range RoleEndpoints(role) {
		if e == endpoint {
			return true
		}
	}
	return false
}
