package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"campus_nav/internal/config"
	"campus_nav/internal/middleware"
	"campus_nav/internal/models"
)

// ErrInvalidCredentials covers both an unknown username and a bad password.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticate checks a username and password against the stored admins and
// records the login time.
func Authenticate(db *gorm.DB, username, password string) (models.AdminUser, error) {
	var admin models.AdminUser
	err := db.Where("username = ?", strings.ToLower(strings.TrimSpace(username))).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AdminUser{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.AdminUser{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return models.AdminUser{}, ErrInvalidCredentials
	}

	now := time.Now()
	if err := db.Model(&admin).Update("last_login_at", now).Error; err != nil {
		logrus.WithError(err).WithField("admin_id", admin.ID).Warn("Failed to record admin login time")
	}
	admin.LastLoginAt = &now
	return admin, nil
}

func Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	admin, err := Authenticate(config.DB, body.Username, body.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		logrus.WithField("username", strings.ToLower(body.Username)).Warn("Admin login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("Login: database error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in"})
		return
	}

	token, err := middleware.GenerateToken(admin.ID, admin.Role, admin.Username)
	if err != nil {
		logrus.WithError(err).Error("Login: could not sign token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": admin,
	})
}

// Me returns the admin the bearer token belongs to.
func Me(c *gin.Context) {
	adminID := c.MustGet("admin_id").(uint)

	var admin models.AdminUser
	if err := config.DB.First(&admin, adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Admin no longer exists"})
			return
		}
		writeError(c, err, "Admin not found", "Failed to load admin")
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": admin})
}
