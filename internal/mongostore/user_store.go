package mongostore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cdm-registrar/registrar-api/internal/models"
	"github.com/cdm-registrar/registrar-api/internal/repository"
)

// UserStore persists accounts, refresh tokens, and session audit logs in
// MongoDB.
type UserStore struct {
	*Store
}

// NewUserStore constructs the store.
func NewUserStore(store *Store) *UserStore {
	return &UserStore{Store: store}
}

type userDoc struct {
	ID            string          `bson:"_id"`
	StudentNumber string          `bson:"student_number"`
	Email         string          `bson:"email"`
	PasswordHash  string          `bson:"password_hash"`
	FirstName     string          `bson:"first_name"`
	LastName      string          `bson:"last_name"`
	ContactNumber string          `bson:"contact_number"`
	Course        string          `bson:"course"`
	YearLevel     string          `bson:"year_level"`
	Role          models.UserRole `bson:"role"`
	Active        bool            `bson:"active"`
	LastLogin     *time.Time      `bson:"last_login,omitempty"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

func userToDoc(u *models.User) userDoc {
	return userDoc{
		ID:            u.ID,
		StudentNumber: u.StudentNumber,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		ContactNumber: u.ContactNumber,
		Course:        u.Course,
		YearLevel:     u.YearLevel,
		Role:          u.Role,
		Active:        u.Active,
		LastLogin:     u.LastLogin,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func (d userDoc) toModel() models.User {
	return models.User{
		ID:            d.ID,
		StudentNumber: d.StudentNumber,
		Email:         d.Email,
		PasswordHash:  d.PasswordHash,
		FirstName:     d.FirstName,
		LastName:      d.LastName,
		ContactNumber: d.ContactNumber,
		Course:        d.Course,
		YearLevel:     d.YearLevel,
		Role:          d.Role,
		Active:        d.Active,
		LastLogin:     d.LastLogin,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Create inserts a new account document.
func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := s.db.Collection(collUsers).InsertOne(ctx, userToDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicateUser
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindByIdentifier returns an active user matched by student number or email.
func (s *UserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	filter := bson.M{
		"active": true,
		"$or": []bson.M{
			{"student_number": identifier},
			{"email": identifier},
		},
	}
	var doc userDoc
	if err := s.db.Collection(collUsers).FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by identifier: %w", err)
	}
	user := doc.toModel()
	return &user, nil
}

// FindByID returns a user by identifier.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	var doc userDoc
	if err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	user := doc.toModel()
	return &user, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (s *UserStore) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"last_login": ts, "updated_at": ts}},
	)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (s *UserStore) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": passwordHash, "updated_at": updatedAt}},
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateRefreshToken stores a refresh token session.
func (s *UserStore) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	doc := bson.M{
		"_id":        token.ID,
		"user_id":    token.UserID,
		"token":      token.Token,
		"expires_at": token.ExpiresAt,
		"created_at": token.CreatedAt,
		"revoked":    token.Revoked,
		"ip_address": token.IPAddress,
		"user_agent": token.UserAgent,
	}
	if _, err := s.db.Collection(collRefreshTokens).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken loads an unrevoked refresh token by value.
func (s *UserStore) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var doc struct {
		ID        string     `bson:"_id"`
		UserID    string     `bson:"user_id"`
		Token     string     `bson:"token"`
		ExpiresAt time.Time  `bson:"expires_at"`
		CreatedAt time.Time  `bson:"created_at"`
		Revoked   bool       `bson:"revoked"`
		RevokedAt *time.Time `bson:"revoked_at,omitempty"`
		IPAddress string     `bson:"ip_address"`
		UserAgent string     `bson:"user_agent"`
	}
	err := s.db.Collection(collRefreshTokens).FindOne(ctx, bson.M{"token": token, "revoked": false}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &models.RefreshToken{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Token:     doc.Token,
		ExpiresAt: doc.ExpiresAt,
		CreatedAt: doc.CreatedAt,
		Revoked:   doc.Revoked,
		RevokedAt: doc.RevokedAt,
		IPAddress: doc.IPAddress,
		UserAgent: doc.UserAgent,
	}, nil
}

// RevokeRefreshToken marks one token revoked.
func (s *UserStore) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	_, err := s.db.Collection(collRefreshTokens).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"revoked": true, "revoked_at": revokedAt}},
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all active tokens for a user.
func (s *UserStore) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.Collection(collRefreshTokens).UpdateMany(ctx,
		bson.M{"user_id": userID, "revoked": false},
		bson.M{"$set": bson.M{"revoked": true, "revoked_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

// CreateAuditLog stores a session audit record.
func (s *UserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	doc := bson.M{
		"_id":         log.ID,
		"user_id":     log.UserID,
		"action":      log.Action,
		"resource":    log.Resource,
		"resource_id": log.ResourceID,
		"details":     log.Details,
		"ip_address":  log.IPAddress,
		"user_agent":  log.UserAgent,
		"created_at":  log.CreatedAt,
	}
	if _, err := s.db.Collection(collAuditLogs).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
