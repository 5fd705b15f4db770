package user

import "github.com/workhub/workhub/internal/permission"

type User struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     permission.Role `json:"role"`
	Status   string          `json:"status"`
	Password string          `json:"-"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Role        permission.Role `json:"role"`
}
