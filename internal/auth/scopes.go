package auth

// Scope tags recognised by the API. Endpoints declare the scopes they
// require; tokens carry the scopes granted at login.
const (
	ScopeUserRead       = "user:read"
	ScopeUserWrite      = "user:write"
	ScopeResourcesRead  = "resources:read"
	ScopeResourcesWrite = "resources:write"
	ScopeResourcesAdmin = "resources:admin"

	// ScopeSuperuser is never required by an endpoint. A principal whose
	// stored scopes contain it passes every scope check.
	ScopeSuperuser = "superuser"
)

// ScopeCatalog maps each grantable scope to its description.
var ScopeCatalog = map[string]string{
	ScopeUserRead:       "Read the current user.",
	ScopeUserWrite:      "Write to the current user.",
	ScopeResourcesRead:  "Read resources.",
	ScopeResourcesWrite: "Write resources.",
	ScopeResourcesAdmin: "Administer resources.",
}
