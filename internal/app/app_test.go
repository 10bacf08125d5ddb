package app

import (
	"io"
	"net/http"
	"net/url"

	"github.com/prperemyshlev/todo-session/internal/dto"
)

func (s *Suite) register(email, password string) dto.AuthResponse {
	var auth dto.AuthResponse
	resp := s.do(http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{Email: email, Password: password}, &auth)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return auth
}

func (s *Suite) TestHealthEndpoint() {
	var body map[string]any
	resp := s.do(http.MethodGet, "/health", "", nil, &body)

	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("pass", body["status"])
}

func (s *Suite) TestMetricsEndpoint() {
	s.register("metrics@example.com", "Password123")

	resp, err := s.server.Client().Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(string(body), "auth_operations_total")
}

func (s *Suite) TestRegister() {
	auth := s.register("Test@Example.com", "Password123")

	s.NotEmpty(auth.AccessToken)
	s.NotEmpty(auth.RefreshToken)
	s.Equal("Bearer", auth.TokenType)
	s.Equal("test@example.com", auth.User.Email)
	s.Empty(auth.User.DisplayName)
}

func (s *Suite) TestRegister_DuplicateEmail() {
	s.register("dup@example.com", "Password123")

	var errResp dto.ErrorResponse
	resp := s.do(http.MethodPost, "/api/v1/auth/register", "", dto.RegisterRequest{Email: "dup@example.com", Password: "Password123"}, &errResp)

	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("email-already-in-use", errResp.Code)
}

func (s *Suite) TestLogin() {
	s.register("login@example.com", "Password123")

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		code     string
	}{
		{"success", "login@example.com", "Password123", http.StatusOK, ""},
		{"wrong password", "login@example.com", "Password124", http.StatusUnauthorized, "wrong-password"},
		{"unknown user", "nobody@example.com", "Password123", http.StatusUnauthorized, "user-not-found"},
		{"invalid email", "nobody", "Password123", http.StatusBadRequest, "invalid-email"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			var errResp dto.ErrorResponse
			resp := s.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: tt.email, Password: tt.password}, &errResp)
			s.Equal(tt.status, resp.StatusCode)
			s.Equal(tt.code, errResp.Code)
		})
	}
}

func (s *Suite) TestLogoutRevokesTokens() {
	auth := s.register("logout@example.com", "Password123")

	resp := s.do(http.MethodGet, "/api/v1/auth/me", auth.AccessToken, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/v1/auth/logout", auth.AccessToken, dto.RefreshRequest{RefreshToken: auth.RefreshToken}, nil)
	s.Equal(http.StatusOK, resp.StatusCode)

	resp = s.do(http.MethodGet, "/api/v1/auth/me", auth.AccessToken, nil, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestRefreshRotates() {
	auth := s.register("refresh@example.com", "Password123")

	var refreshed dto.AuthResponse
	resp := s.do(http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, &refreshed)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.NotEqual(auth.RefreshToken, refreshed.RefreshToken)

	resp = s.do(http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *Suite) TestProfileDocuments() {
	auth := s.register("profile@example.com", "Password123")
	other := s.register("other@example.com", "Password123")
	path := "/api/v1/profiles/" + auth.User.ID

	resp := s.do(http.MethodGet, path, auth.AccessToken, nil, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	var profile dto.ProfileResponse
	resp = s.do(http.MethodPut, path, auth.AccessToken, dto.ProfileRequest{
		Email:       auth.User.Email,
		DisplayName: "Ana",
		CreatedAt:   auth.User.CreatedAt,
	}, &profile)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Ana", profile.DisplayName)

	resp = s.do(http.MethodPatch, path, auth.AccessToken, dto.ProfilePatchRequest{DisplayName: "Ana Maria"}, &profile)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("Ana Maria", profile.DisplayName)

	resp = s.do(http.MethodGet, path, other.AccessToken, nil, nil)
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func (s *Suite) TestTodosAreScopedToOwner() {
	auth := s.register("todos@example.com", "Password123")
	other := s.register("intruder@example.com", "Password123")

	var todo dto.TodoResponse
	resp := s.do(http.MethodPost, "/api/v1/todos", auth.AccessToken, dto.CreateTodoRequest{Title: "  buy milk "}, &todo)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("buy milk", todo.Title)
	s.Equal(auth.User.ID, todo.UserID)

	var list dto.TodoListResponse
	s.do(http.MethodGet, "/api/v1/todos", other.AccessToken, nil, &list)
	s.Empty(list.Todos)

	resp = s.do(http.MethodGet, "/api/v1/todos/"+todo.ID, other.AccessToken, nil, nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	done := true
	resp = s.do(http.MethodPatch, "/api/v1/todos/"+todo.ID, auth.AccessToken, dto.UpdateTodoRequest{Completed: &done}, &todo)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.True(todo.Completed)

	resp = s.do(http.MethodDelete, "/api/v1/todos/"+todo.ID, auth.AccessToken, nil, nil)
	s.Equal(http.StatusNoContent, resp.StatusCode)

	s.do(http.MethodGet, "/api/v1/todos", auth.AccessToken, nil, &list)
	s.Empty(list.Todos)
}

func (s *Suite) TestPasswordResetFlow() {
	auth := s.register("reset@example.com", "Password123")

	resp := s.do(http.MethodPost, "/api/v1/auth/password-reset", "", dto.PasswordResetRequest{Email: "reset@example.com"}, nil)
	s.Require().Equal(http.StatusAccepted, resp.StatusCode)

	entries := s.logs.FilterMessage("Password reset link issued").All()
	s.Require().Len(entries, 1)
	link, err := url.Parse(entries[0].ContextMap()["link"].(string))
	s.Require().NoError(err)
	token := link.Query().Get("token")
	s.Require().NotEmpty(token)

	resp = s.do(http.MethodPost, "/api/v1/auth/password-reset/confirm", "", dto.PasswordResetConfirmRequest{Token: token, Password: "NewPassword1"}, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var errResp dto.ErrorResponse
	resp = s.do(http.MethodPost, "/api/v1/auth/password-reset/confirm", "", dto.PasswordResetConfirmRequest{Token: token, Password: "NewPassword2"}, &errResp)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("invalid-action-code", errResp.Code)

	resp = s.do(http.MethodPost, "/api/v1/auth/refresh", "", dto.RefreshRequest{RefreshToken: auth.RefreshToken}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: "reset@example.com", Password: "NewPassword1"}, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *Suite) TestPasswordResetUnknownEmail() {
	resp := s.do(http.MethodPost, "/api/v1/auth/password-reset", "", dto.PasswordResetRequest{Email: "ghost@example.com"}, nil)

	s.Equal(http.StatusAccepted, resp.StatusCode)
	s.Empty(s.logs.FilterMessage("Password reset link issued").All())
}
