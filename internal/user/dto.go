// AngelaMos | 2026
// dto.go

package user

// UpdateProfileRequest carries the fields a user may edit about
// themselves. Role and super admin status are not among them.
type UpdateProfileRequest struct {
	ID          string `json:"id"           validate:"required"`
	Name        string `json:"name"         validate:"required,min=1,max=100"`
	Email       string `json:"email"        validate:"required,email,max=255"`
	HideSidebar bool   `json:"hide_sidebar"`
}

func (r UpdateProfileRequest) ToUser() *User {
	return &User{
		ID:          r.ID,
		Name:        r.Name,
		Email:       r.Email,
		HideSidebar: r.HideSidebar,
	}
}
