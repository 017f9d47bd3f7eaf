package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokomas/goldpos/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the JWT payload issued to shop staff.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id"`
	jwt.RegisteredClaims
}

// LoginResponse is returned on successful authentication.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Manager handles staff authentication and user administration.
type Manager struct {
	db        *sql.DB
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *logrus.Logger
}

// NewManager creates an auth manager.
func NewManager(db *sql.DB, jwtSecret string, tokenTTL time.Duration, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if tokenTTL <= 0 {
		tokenTTL = 12 * time.Hour
	}
	return &Manager{db: db, jwtSecret: []byte(jwtSecret), tokenTTL: tokenTTL, logger: logger}
}

// Login verifies credentials and issues a signed token.
func (m *Manager) Login(username, password string) (*LoginResponse, error) {
	user, err := m.getUserByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		m.logger.WithField("username", username).Warn("Failed login attempt")
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		BranchID: user.BranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if _, err := m.db.Exec(
		"UPDATE users SET last_login = datetime('now') WHERE id = ?", user.ID,
	); err != nil {
		m.logger.WithError(err).Warn("Failed to record last login")
	}

	m.logger.WithFields(logrus.Fields{
		"username": user.Username,
		"role":     user.Role,
	}).Info("User logged in")

	return &LoginResponse{Token: token, User: user}, nil
}

// ValidateToken parses and verifies a token, returning its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateUser adds a staff account. Role must be owner or kasir.
func (m *Manager) CreateUser(branchID, username, password, fullName, role string) (*models.User, error) {
	if role != "owner" && role != "kasir" {
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := uuid.New().String()
	_, err = m.db.Exec(`
		INSERT INTO users (id, branch_id, username, password_hash, full_name, role, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)
	`, id, branchID, username, string(hash), fullName, role)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return m.GetUser(id)
}

// ChangePassword verifies the old password and stores a new hash.
func (m *Manager) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := m.GetUser(userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = m.db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", string(hash), userID)
	return err
}

// GetUser loads a user by id.
func (m *Manager) GetUser(id string) (*models.User, error) {
	return m.scanUser(m.db.QueryRow(`
		SELECT id, branch_id, username, password_hash, full_name, role, is_active, last_login, created_at
		FROM users WHERE id = ?
	`, id))
}

func (m *Manager) getUserByUsername(username string) (*models.User, error) {
	return m.scanUser(m.db.QueryRow(`
		SELECT id, branch_id, username, password_hash, full_name, role, is_active, last_login, created_at
		FROM users WHERE username = ?
	`, username))
}

func (m *Manager) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.BranchID, &u.Username, &u.PasswordHash, &u.FullName,
		&u.Role, &u.IsActive, &u.LastLogin, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &u, nil
}
