// AngelaMos | 2026
// entity.go

package user

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// User is the identity record of the signed-in actor as returned by the
// clinic API. Role is free-form; only RoleAdmin carries meaning here.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	IsSuperAdmin bool   `json:"is_super_admin"`
	HideSidebar  bool   `json:"hide_sidebar"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
