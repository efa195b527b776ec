package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/cache"
	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const displayInfoTTL = 5 * time.Minute

// UserDirectory resolves user ids to profile display information. The
// messaging core only consumes it; account management lives elsewhere.
type UserDirectory interface {
	Exists(ctx context.Context, userID int) (bool, error)
	DisplayInfo(ctx context.Context, userID int) (models.UserInfo, error)
	BulkDisplayInfo(ctx context.Context, userIDs []int) (map[int]models.UserInfo, error)
}

// UserDirectoryRepo reads the shared users table, with a read-through cache
// for display info.
type UserDirectoryRepo struct {
	db    *sqlx.DB
	cache cache.Cache
}

// NewUserDirectoryRepo constructs a UserDirectoryRepo.
func NewUserDirectoryRepo(db *sqlx.DB, c cache.Cache) *UserDirectoryRepo {
	return &UserDirectoryRepo{db: db, cache: c}
}

// Exists reports whether the user id is known.
func (r *UserDirectoryRepo) Exists(ctx context.Context, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID)
	return exists, err
}

// DisplayInfo returns the user's display information, consulting the cache
// first.
func (r *UserDirectoryRepo) DisplayInfo(ctx context.Context, userID int) (models.UserInfo, error) {
	key := displayInfoKey(userID)
	if cached, err := r.cache.Get(ctx, key); err == nil {
		var info models.UserInfo
		if err := json.Unmarshal([]byte(cached), &info); err == nil {
			return info, nil
		}
	}

	var info models.UserInfo
	err := r.db.GetContext(ctx, &info, `SELECT id, username, avatar_color, clan_emoji FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserInfo{}, ErrUserNotFound
	}
	if err != nil {
		return models.UserInfo{}, err
	}

	if encoded, err := json.Marshal(info); err == nil {
		_ = r.cache.Set(ctx, key, string(encoded), displayInfoTTL)
	}
	return info, nil
}

// BulkDisplayInfo fetches display info for many users in one query. Unknown
// ids are simply absent from the result.
func (r *UserDirectoryRepo) BulkDisplayInfo(ctx context.Context, userIDs []int) (map[int]models.UserInfo, error) {
	result := make(map[int]models.UserInfo, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT id, username, avatar_color, clan_emoji FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var infos []models.UserInfo
	if err := r.db.SelectContext(ctx, &infos, query, args...); err != nil {
		return nil, err
	}
	for _, info := range infos {
		result[info.ID] = info
	}
	return result, nil
}

func displayInfoKey(userID int) string {
	return fmt.Sprintf("user:display:%d", userID)
}
