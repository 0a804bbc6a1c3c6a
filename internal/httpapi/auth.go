package httpapi

import (
	"net/http"

	"realestate/internal/services"
	apperrors "realestate/pkg/errors"
)

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in services.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(ctx, w, err)
		return
	}
	result, err := s.deps.Auth.Login(ctx, in)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, result)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(r.Context(), w, apperrors.Unauthorized("not authenticated"))
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, services.ToUserResult(user))
}
