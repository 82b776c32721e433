package types

// UserStatusActive is the status required to pass the active-principal check.
const UserStatusActive = "active"

// User represents an account in the system.
// It contains identity, capability, and credential metadata.
type User struct {
	// ID is the unique identifier of the user and the login name.
	ID string `json:"id" db:"id"`

	// Name is the user's display or full name.
	Name string `json:"name" db:"name"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// Status is the account status. Only "active" accounts pass the
	// guard's active-principal check.
	Status string `json:"status" db:"status"`

	// Data holds free-form application data attached to the user.
	Data map[string]any `json:"data" db:"data"`

	// Scopes are the capability tags granted to the user. A token can
	// never carry a scope outside this set unless the set contains
	// "superuser".
	Scopes []string `json:"scopes" db:"scopes"`

	// HashedPassword stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	HashedPassword string `json:"-" db:"hashed_password"`
}

// UserData is the public projection of a user returned by the API.
type UserData struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
}

// UserUpdate is a partial update of a user's public fields. Nil fields
// are left unchanged.
type UserUpdate struct {
	Name   *string         `json:"name"`
	Email  *string         `json:"email"`
	Status *string         `json:"status"`
	Data   *map[string]any `json:"data"`
}

// UserCreate is a request to create a user with an initial password.
type UserCreate struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Status   string         `json:"status"`
	Data     map[string]any `json:"data"`
	Password string         `json:"password"`
	Scopes   []string       `json:"scopes"`
}

// Public returns the API-safe projection of the user.
func (u User) Public() UserData {
	return UserData{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Status: u.Status,
		Data:   u.Data,
	}
}

// HasScope reports whether the user's stored scopes contain the given tag.
func (u User) HasScope(scope string) bool {
	for _, s := range u.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Apply merges a partial update into the user.
func (u *User) Apply(update UserUpdate) {
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.Status != nil {
		u.Status = *update.Status
	}
	if update.Data != nil {
		u.Data = *update.Data
	}
}
