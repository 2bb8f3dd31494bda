package seeder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vnmchuo/noteswise/internal/auth"
	"github.com/vnmchuo/noteswise/internal/notes"
)

const (
	DevUserID       = "00000000-0000-0000-0000-000000000001"
	DevCategoryName = "General"
	DevTokenTTL     = 24 * time.Hour
)

// SeedDevUser gives the development user a starter category and returns a
// bearer token for it. Running it twice does not duplicate the category.
func SeedDevUser(ctx context.Context, store notes.Store, jwtSecret string, logger *zap.Logger) (string, error) {
	categories, err := store.ListCategories(ctx, DevUserID)
	if err != nil {
		return "", fmt.Errorf("list dev categories: %w", err)
	}

	exists := false
	for _, c := range categories {
		if c.Name == DevCategoryName {
			exists = true
			break
		}
	}
	if exists {
		logger.Info("[Seeder] dev category already exists, skipping", zap.String("user_id", DevUserID))
	} else {
		category := &notes.Category{UserID: DevUserID, Name: DevCategoryName, Color: "#6366f1"}
		if err := store.CreateCategory(ctx, category); err != nil {
			return "", fmt.Errorf("create dev category: %w", err)
		}
		logger.Info("[Seeder] dev category created", zap.String("category_id", category.ID))
	}

	token, err := auth.IssueToken(jwtSecret, DevUserID, DevTokenTTL)
	if err != nil {
		return "", fmt.Errorf("issue dev token: %w", err)
	}
	logger.Info("[Seeder] dev token issued",
		zap.String("user_id", DevUserID),
		zap.Duration("ttl", DevTokenTTL),
		zap.String("token", token))
	return token, nil
}
