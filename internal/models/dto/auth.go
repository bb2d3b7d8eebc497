package dto

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RoleRequest struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}
