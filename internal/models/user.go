package models

// Address is a saved delivery address as returned by GET /user/addresses.
type Address struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Detail    string `json:"detail"`
	Note      string `json:"note,omitempty"`
	IsDefault bool   `json:"isDefault"`
}

// User is the identity snapshot held by the session. Customer logins report
// first/last name separately; Name is filled from them when empty.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DisplayName returns Name, or the joined first and last names.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}

// EffectiveRole defaults an empty role to RoleUser.
func (u User) EffectiveRole() string {
	if u.Role == "" {
		return RoleUser
	}
	return u.Role
}
