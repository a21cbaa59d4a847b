package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bibmap/bibmap-api/auth"
	"github.com/bibmap/bibmap-api/config"
	"github.com/bibmap/bibmap-api/middleware"
	"github.com/bibmap/bibmap-api/models"
)

func (h *DBHandler) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Domain:   config.Env.Domain,
		HttpOnly: true,
		Secure:   config.Env.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   config.Env.TokenMinutes * 60,
	})
}

func (h *DBHandler) Register(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		Email       string `json:"email"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Email == "" || requestData.Username == "" || requestData.Password == "" {
		http.Error(w, "Email, username and password are required", http.StatusBadRequest)
		return
	}
	if len(requestData.Password) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	var existing models.User
	if err := h.DB.Where("email = ?", requestData.Email).First(&existing).Error; err == nil {
		http.Error(w, "Email already registered", http.StatusBadRequest)
		return
	}
	if err := h.DB.Where("username = ?", requestData.Username).First(&existing).Error; err == nil {
		http.Error(w, "Username already taken", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(requestData.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	displayName := requestData.DisplayName
	if displayName == "" {
		displayName = requestData.Username
	}

	// Admin accounts come from the startup bootstrap, never registration
	user := models.User{
		Email:        requestData.Email,
		Username:     requestData.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsActive:     true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		log.Println("Database creation error:", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, user)
}

func (h *DBHandler) Login(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Username field accepts either username or email
	var user models.User
	if err := h.DB.Where("username = ? OR email = ?", requestData.Username, requestData.Username).First(&user).Error; err != nil {
		http.Error(w, "Incorrect username or password", http.StatusUnauthorized)
		return
	}

	if user.PasswordHash == "" || !auth.CheckPassword(requestData.Password, user.PasswordHash) {
		http.Error(w, "Incorrect username or password", http.StatusUnauthorized)
		return
	}

	if !user.IsActive {
		http.Error(w, "User account is disabled", http.StatusForbidden)
		return
	}

	now := time.Now()
	user.LastLogin = &now
	if err := h.DB.Save(&user).Error; err != nil {
		log.Println("Failed to record last login:", err)
	}

	tokenString, err := auth.CreateToken(user.ID, user.Username)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		log.Println("Token generation error:", err)
		return
	}

	h.setAccessCookie(w, tokenString)
	h.respondJSON(w, http.StatusOK, map[string]string{
		"access_token": tokenString,
		"token_type":   "bearer",
	})
}

func (h *DBHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		Domain:   config.Env.Domain,
		HttpOnly: true,
		Secure:   config.Env.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *DBHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, middleware.UserFrom(r))
}

func (h *DBHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	var requestData struct {
		Email       *string `json:"email"`
		DisplayName *string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Email != nil && *requestData.Email != user.Email {
		var existing models.User
		if err := h.DB.Where("email = ?", *requestData.Email).First(&existing).Error; err == nil {
			http.Error(w, "Email already registered", http.StatusBadRequest)
			return
		}
		user.Email = *requestData.Email
	}
	if requestData.DisplayName != nil {
		user.DisplayName = *requestData.DisplayName
	}

	if err := h.DB.Save(user).Error; err != nil {
		http.Error(w, "Failed to update user", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *DBHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFrom(r)

	var requestData struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !auth.CheckPassword(requestData.CurrentPassword, user.PasswordHash) {
		http.Error(w, "Current password is incorrect", http.StatusBadRequest)
		return
	}
	if len(requestData.NewPassword) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(requestData.NewPassword)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash
	if err := h.DB.Save(user).Error; err != nil {
		http.Error(w, "Failed to update password", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// Admin user management

// CreateUser lets an admin provision an account directly, including other
// admins; open registration stays restricted to role user.
func (h *DBHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var requestData struct {
		Email       string `json:"email"`
		Username    string `json:"username"`
		DisplayName string `json:"display_name"`
		Password    string `json:"password"`
		Role        string `json:"role"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Email == "" || requestData.Username == "" || requestData.Password == "" {
		http.Error(w, "Email, username and password are required", http.StatusBadRequest)
		return
	}
	if len(requestData.Password) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}
	role := requestData.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleAdmin && role != models.RoleUser {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	var existing models.User
	if err := h.DB.Where("email = ?", requestData.Email).First(&existing).Error; err == nil {
		http.Error(w, "Email already registered", http.StatusBadRequest)
		return
	}
	if err := h.DB.Where("username = ?", requestData.Username).First(&existing).Error; err == nil {
		http.Error(w, "Username already taken", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(requestData.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	displayName := requestData.DisplayName
	if displayName == "" {
		displayName = requestData.Username
	}
	isActive := true
	if requestData.IsActive != nil {
		isActive = *requestData.IsActive
	}

	user := models.User{
		Email:        requestData.Email,
		Username:     requestData.Username,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         role,
		IsActive:     isActive,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		log.Println("Database creation error:", err)
		return
	}
	h.respondJSON(w, http.StatusCreated, user)
}

func (h *DBHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

// ResetUserPassword sets a new password for any account without knowing the
// current one.
func (h *DBHandler) ResetUserPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	var requestData struct {
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(requestData.NewPassword) < 8 {
		http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(requestData.NewPassword)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash
	if err := h.DB.Save(&user).Error; err != nil {
		http.Error(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

func (h *DBHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var users []models.User
	if err := h.DB.Order("id").Find(&users).Error; err != nil {
		http.Error(w, "Error retrieving users", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, users)
}

func (h *DBHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFrom(r)
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	var requestData struct {
		Role     *string `json:"role"`
		IsActive *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if requestData.Role != nil {
		if *requestData.Role != models.RoleAdmin && *requestData.Role != models.RoleUser {
			http.Error(w, "Invalid role", http.StatusBadRequest)
			return
		}
		user.Role = *requestData.Role
	}
	if requestData.IsActive != nil {
		if user.ID == admin.ID && !*requestData.IsActive {
			http.Error(w, "Cannot deactivate your own account", http.StatusBadRequest)
			return
		}
		user.IsActive = *requestData.IsActive
	}

	if err := h.DB.Save(&user).Error; err != nil {
		http.Error(w, "Failed to update user", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, user)
}

func (h *DBHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	admin := middleware.UserFrom(r)
	userID, ok := pathID(r, "userID")
	if !ok {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	if userID == admin.ID {
		http.Error(w, "Cannot delete your own account", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if err := h.DB.Delete(&user).Error; err != nil {
		http.Error(w, "Failed to delete user", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
