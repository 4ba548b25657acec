package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aslanbek/account-service/internal/entity"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var (
	ErrDuplicateEmail = errors.New("email already exists")
	ErrUserNotFound   = errors.New("user not found")
	ErrInvalidUserID  = errors.New("invalid user id")
)

type mongoUser struct {
	ID                     primitive.ObjectID `bson:"_id,omitempty"`
	FullName               string             `bson:"full_name"`
	Email                  string             `bson:"email"`
	PasswordHash           string             `bson:"password,omitempty"`
	PhoneNumber            string             `bson:"phone_number"`
	PasswordResetTokenHash string             `bson:"password_reset_token,omitempty"`
	PasswordResetExpiry    *time.Time         `bson:"password_reset_expiry,omitempty"`
	CreatedAt              time.Time          `bson:"created_at"`
	UpdatedAt              time.Time          `bson:"updated_at"`
}

func (m *mongoUser) toEntity() *entity.User {
	return &entity.User{
		ID:                     m.ID,
		FullName:               m.FullName,
		Email:                  m.Email,
		PasswordHash:           m.PasswordHash,
		PhoneNumber:            m.PhoneNumber,
		PasswordResetTokenHash: m.PasswordResetTokenHash,
		PasswordResetExpiry:    m.PasswordResetExpiry,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}

// UserUpdate carries a partial profile update. Nil fields are left
// untouched.
type UserUpdate struct {
	FullName    *string
	Email       *string
	PhoneNumber *string
}

// UserRepository is the sole writer of user documents. It never sees
// plaintext passwords; callers hand it the computed hash.
type UserRepository struct {
	db     *mongo.Database
	logger *zap.Logger
}

func NewUserRepository(db *mongo.Database, logger *zap.Logger) *UserRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Ensure the unique email index (idempotent operation)
	userCollection := db.Collection("users")
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	_, err := userCollection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Warn("Failed to create indexes for users collection (may already exist)", zap.Error(err))
	} else {
		logger.Info("Successfully ensured indexes for users collection")
	}

	return &UserRepository{
		db:     db,
		logger: logger.Named("UserRepository"),
	}
}

func isDuplicateEmail(err error) bool {
	var writeException mongo.WriteException
	if errors.As(err, &writeException) {
		for _, writeError := range writeException.WriteErrors {
			if writeError.Code == 11000 && strings.Contains(writeError.Message, "email_1") {
				return true
			}
		}
	}
	return false
}

// CreateUser inserts user and returns the assigned id. The entity's
// PasswordHash field must already hold the bcrypt hash.
func (r *UserRepository) CreateUser(ctx context.Context, user *entity.User) (primitive.ObjectID, error) {
	r.logger.Info("Attempting to create user", zap.String("email", user.Email))

	now := time.Now()
	dbUser := &mongoUser{
		ID:           primitive.NewObjectID(),
		FullName:     user.FullName,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		PhoneNumber:  user.PhoneNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := r.db.Collection("users").InsertOne(ctx, dbUser)
	if err != nil {
		if isDuplicateEmail(err) {
			r.logger.Warn("Duplicate email during user creation", zap.String("email", user.Email))
			return primitive.NilObjectID, ErrDuplicateEmail
		}
		r.logger.Error("Database error during user creation", zap.String("email", user.Email), zap.Error(err))
		return primitive.NilObjectID, err
	}

	user.ID = dbUser.ID
	user.CreatedAt = now
	user.UpdatedAt = now
	r.logger.Info("User created successfully", zap.String("userID", dbUser.ID.Hex()))
	return dbUser.ID, nil
}

// GetUserByEmail fetches a user by email. The password hash is excluded
// from the projection unless includePassword is set; only credential
// verification asks for it.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string, includePassword bool) (*entity.User, error) {
	r.logger.Debug("Fetching user by email", zap.String("email", email))

	findOptions := options.FindOne()
	if !includePassword {
		findOptions.SetProjection(bson.M{"password": 0})
	}

	var dbUser mongoUser
	err := r.db.Collection("users").FindOne(ctx, bson.M{"email": email}, findOptions).Decode(&dbUser)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Database error fetching user by email", zap.String("email", email), zap.Error(err))
		return nil, err
	}
	return dbUser.toEntity(), nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*entity.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidUserID
	}

	var dbUser mongoUser
	err = r.db.Collection("users").
		FindOne(ctx, bson.M{"_id": objectID}, options.FindOne().SetProjection(bson.M{"password": 0})).
		Decode(&dbUser)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		r.logger.Error("Database error fetching user by ID", zap.String("userID", id), zap.Error(err))
		return nil, err
	}
	return dbUser.toEntity(), nil
}

// UpdateUser applies only the provided fields. Returns ErrUserNotFound
// when no document matches id and ErrDuplicateEmail when an email
// change collides with the unique index.
func (r *UserRepository) UpdateUser(ctx context.Context, id string, update UserUpdate) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidUserID
	}
	r.logger.Info("Attempting to update user", zap.String("userID", id))

	set := bson.M{"updated_at": time.Now()}
	if update.FullName != nil {
		set["full_name"] = *update.FullName
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.PhoneNumber != nil {
		set["phone_number"] = *update.PhoneNumber
	}

	result, err := r.db.Collection("users").UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": set})
	if err != nil {
		if isDuplicateEmail(err) {
			r.logger.Warn("Duplicate email during user update", zap.String("userID", id))
			return ErrDuplicateEmail
		}
		r.logger.Error("Database error during user update", zap.String("userID", id), zap.Error(err))
		return err
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("User not found during update attempt", zap.String("userID", id))
		return ErrUserNotFound
	}
	r.logger.Info("User updated successfully", zap.String("userID", id))
	return nil
}

// SetPasswordReset stores the reset-token hash together with its
// expiry. The pair is written atomically so it is never half present.
func (r *UserRepository) SetPasswordReset(ctx context.Context, id string, tokenHash string, expiresAt time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidUserID
	}
	r.logger.Info("Saving password reset details", zap.String("userID", id))

	update := bson.M{
		"$set": bson.M{
			"password_reset_token":  tokenHash,
			"password_reset_expiry": expiresAt,
			"updated_at":            time.Now(),
		},
	}
	result, err := r.db.Collection("users").UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		r.logger.Error("DB error saving password reset details", zap.String("userID", id), zap.Error(err))
		return err
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClearPasswordReset removes the reset-token pair after a completed
// reset or once the expiry has passed.
func (r *UserRepository) ClearPasswordReset(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidUserID
	}
	r.logger.Info("Clearing password reset details", zap.String("userID", id))

	update := bson.M{
		"$set": bson.M{
			"updated_at": time.Now(),
		},
		"$unset": bson.M{
			"password_reset_token":  "",
			"password_reset_expiry": "",
		},
	}
	result, err := r.db.Collection("users").UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		r.logger.Error("DB error clearing password reset details", zap.String("userID", id), zap.Error(err))
		return err
	}
	if result.MatchedCount == 0 {
		return ErrUserNotFound
	}
	return nil
}
