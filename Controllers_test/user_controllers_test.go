package Controllers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campusbites/campus-bites/controllers"
	"github.com/campusbites/campus-bites/middlewares"
	"github.com/campusbites/campus-bites/utils"
)

func userRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t, "users")
	userCtrl := controllers.NewUserController(db)

	r := gin.New()
	r.POST("/register", userCtrl.Register)
	r.POST("/login", userCtrl.Login)
	r.GET("/profile", middlewares.AuthMiddleware(), userCtrl.GetProfile)
	r.POST("/logout", middlewares.AuthMiddleware(), userCtrl.Logout)
	return r
}

func postJSON(r *gin.Engine, path string, payload interface{}, token string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterLoginAndProfile(t *testing.T) {
	utils.InitLogger()
	r := userRouter(t)

	w := postJSON(r, "/register", map[string]string{
		"name":     "Wanjiku",
		"email":    "wanjiku@students.example.ac.ke",
		"phone":    "0712345678",
		"password": "secret123",
		"role":     "student",
	}, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	// Bad credentials never yield a token.
	w = postJSON(r, "/login", map[string]string{
		"email":    "wanjiku@students.example.ac.ke",
		"password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postJSON(r, "/login", map[string]string{
		"email":    "wanjiku@students.example.ac.ke",
		"password": "secret123",
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp utils.JSONResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	token, _ := data["token"].(string)
	assert.NotEmpty(t, token)
	assert.Equal(t, "student", data["user_role"])

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
	assert.Contains(t, w2.Body.String(), "Wanjiku")
	assert.NotContains(t, w2.Body.String(), "secret123")
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	utils.InitLogger()
	r := userRouter(t)

	w := postJSON(r, "/register", map[string]string{
		"name":     "Eve",
		"email":    "eve@example.com",
		"password": "secret123",
		"role":     "superuser",
	}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	utils.InitLogger()
	r := userRouter(t)

	postJSON(r, "/register", map[string]string{
		"name":     "Otieno",
		"email":    "otieno@students.example.ac.ke",
		"password": "secret123",
		"role":     "student",
	}, "")
	w := postJSON(r, "/login", map[string]string{
		"email":    "otieno@students.example.ac.ke",
		"password": "secret123",
	}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp utils.JSONResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp.Data.(map[string]interface{})["token"].(string)

	assert.Equal(t, http.StatusOK, postJSON(r, "/logout", nil, token).Code)

	// The revoked token stops working immediately.
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}
