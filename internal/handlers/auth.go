package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/tradefin-io/tradefingo/internal/models"
	"github.com/tradefin-io/tradefingo/internal/utils"
)

type registerRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
	OrgName  string      `json:"orgName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// register creates a new participant account
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.Email == "" || body.Password == "" || body.Role == "" {
		respondError(w, http.StatusBadRequest, "email, password and role are required")
		return
	}

	hash, err := utils.HashPassword(body.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user := models.User{
		Name:         body.Name,
		Email:        body.Email,
		PasswordHash: hash,
		Role:         body.Role,
		OrgName:      body.OrgName,
	}
	if err := r.db.WithContext(req.Context()).Create(&user).Error; err != nil {
		log.Printf("❌ Failed to create user: %v", err)
		respondError(w, http.StatusConflict, "Email already registered")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"userId": user.ID,
		"role":   user.Role,
	})
}

// login verifies credentials and issues an access token
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	var user models.User
	if err := r.db.WithContext(req.Context()).First(&user, "email = ?", body.Email).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !utils.CheckPasswordHash(body.Password, user.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateToken(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":      user.ID,
			"name":    user.Name,
			"role":    user.Role,
			"orgName": user.OrgName,
		},
	})
}
