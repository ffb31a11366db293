package middleware

import (
	"net/http"

	"github.com/buildcrew/payroll-service/internal/handler/http/response"
	"github.com/go-chi/jwtauth/v5"
)

const (
	RoleOwner    = "owner"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// RequireOwner requires owner role
func RequireOwner(next http.Handler) http.Handler {
	return requireRole(next, "Owner access required", RoleOwner)
}

// RequireManager requires manager or owner role
func RequireManager(next http.Handler) http.Handler {
	return requireRole(next, "Manager access required", RoleManager, RoleOwner)
}

func requireRole(next http.Handler, message string, allowed ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Forbidden(w, message)
			return
		}

		role, ok := claims["role"].(string)
		if !ok {
			response.Forbidden(w, message)
			return
		}

		for _, a := range allowed {
			if role == a {
				next.ServeHTTP(w, r)
				return
			}
		}
		response.Forbidden(w, message)
	})
}
