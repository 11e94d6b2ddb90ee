package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fotofeed/apiserver/types"
)

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, name, bio, avatar, role, password_hash, is_verified,
		       otp, otp_expiry, reset_token, reset_expiry, created_at, updated_at`

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (email, name, bio, avatar, role, password_hash, is_verified,
		                   otp, otp_expiry, reset_token, reset_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Bio,
		user.Avatar,
		user.Role,
		user.PasswordHash,
		user.IsVerified,
		user.OTP,
		user.OTPExpiry,
		user.ResetToken,
		user.ResetExpiry,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			name = $2,
			bio = $3,
			avatar = $4,
			role = $5,
			password_hash = $6,
			is_verified = $7,
			otp = $8,
			otp_expiry = $9,
			reset_token = $10,
			reset_expiry = $11,
			updated_at = $12
		WHERE id = $13`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Bio,
		user.Avatar,
		user.Role,
		user.PasswordHash,
		user.IsVerified,
		user.OTP,
		user.OTPExpiry,
		user.ResetToken,
		user.ResetExpiry,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

// ResetPassword replaces the password hash of the user holding the given
// non-expired reset token and clears the token, all in one statement.
// Returns ErrNotFound when no user matches.
func (r *UserRepository) ResetPassword(ctx context.Context, token, passwordHash string, now time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $1,
			reset_token = NULL,
			reset_expiry = NULL,
			updated_at = $2
		WHERE reset_token = $3 AND reset_expiry > $2`
	result, err := r.db.ExecContext(ctx, query, passwordHash, now, token)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (types.User, error) {
	var user types.User
	var otp, resetToken sql.NullString
	var otpExpiry, resetExpiry sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Bio,
		&user.Avatar,
		&user.Role,
		&user.PasswordHash,
		&user.IsVerified,
		&otp,
		&otpExpiry,
		&resetToken,
		&resetExpiry,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}

	if otp.Valid {
		user.OTP = &otp.String
	}
	if otpExpiry.Valid {
		user.OTPExpiry = &otpExpiry.Time
	}
	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	if resetExpiry.Valid {
		user.ResetExpiry = &resetExpiry.Time
	}
	return user, nil
}
