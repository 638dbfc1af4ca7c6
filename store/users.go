package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mentorbridge/mentorbridge"
	"gorm.io/gorm"
)

// GetUserByEmail looks a user up by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (mentorbridge.UserRecord, error) {
	var row userRow
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&row).Error
	if err != nil {
		return mentorbridge.UserRecord{}, userLookupError(err)
	}
	return row.record()
}

// GetUserByID looks a user up by id.
func (s *Store) GetUserByID(ctx context.Context, userID string) (mentorbridge.UserRecord, error) {
	var row userRow
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&row).Error; err != nil {
		return mentorbridge.UserRecord{}, userLookupError(err)
	}
	return row.record()
}

// CreateUser inserts a user. A taken email yields [mentorbridge.ErrAccountExists].
func (s *Store) CreateUser(ctx context.Context, in mentorbridge.CreateUserInput) (mentorbridge.UserRecord, error) {
	if in.Profile == nil {
		return mentorbridge.UserRecord{}, fmt.Errorf("%w: profile is required", mentorbridge.ErrInvalidInput)
	}

	now := time.Now().UTC()
	row := userRow{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: in.PasswordHash,
		Role:         string(in.Profile.Role()),
		College:      in.College,
		Bio:          in.Bio,
		Skills:       joinTags(in.Skills),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m, ok := in.Profile.(mentorbridge.MentorProfile); ok {
		row.Expertise = joinTags(m.Expertise)
		row.YearsExperience = m.YearsExperience
		row.Rating = m.Rating
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&userRow{}).Where("email = ?", row.Email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return mentorbridge.ErrAccountExists
		}
		return tx.Create(&row).Error
	})
	switch {
	case err == nil:
		return row.record()
	case errors.Is(err, mentorbridge.ErrAccountExists), errors.Is(err, gorm.ErrDuplicatedKey):
		return mentorbridge.UserRecord{}, mentorbridge.ErrAccountExists
	default:
		return mentorbridge.UserRecord{}, fmt.Errorf("create user: %w", err)
	}
}

// UpdatePasswordHash replaces the stored hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", userID).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("update password hash: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return mentorbridge.ErrUserNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil fields of update. Mentor fields are
// ignored for other roles.
func (s *Store) UpdateProfile(ctx context.Context, userID string, update mentorbridge.ProfileUpdate) (mentorbridge.UserRecord, error) {
	var row userRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", userID).First(&row).Error; err != nil {
			return err
		}
		if update.Name != nil {
			row.Name = *update.Name
		}
		if update.College != nil {
			row.College = *update.College
		}
		if update.Bio != nil {
			row.Bio = *update.Bio
		}
		if update.Skills != nil {
			row.Skills = joinTags(*update.Skills)
		}
		if row.Role == string(mentorbridge.RoleMentor) {
			if update.Expertise != nil {
				row.Expertise = joinTags(*update.Expertise)
			}
			if update.YearsExperience != nil {
				row.YearsExperience = *update.YearsExperience
			}
		}
		row.UpdatedAt = time.Now().UTC()
		return tx.Save(&row).Error
	})
	if err != nil {
		return mentorbridge.UserRecord{}, userLookupError(err)
	}
	return row.record()
}

// SearchMentors lists mentors by name ascending. Search matches a substring
// of name or expertise; Expertise matches one whole tag. Both ignore case.
func (s *Store) SearchMentors(ctx context.Context, filter mentorbridge.MentorFilter) ([]mentorbridge.User, error) {
	q := s.db.WithContext(ctx).Model(&userRow{}).Where("role = ?", string(mentorbridge.RoleMentor))
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(expertise) LIKE ?", like, like)
	}
	if tag := strings.ToLower(strings.TrimSpace(filter.Expertise)); tag != "" {
		q = q.Where("(',' || LOWER(expertise) || ',') LIKE ?", "%,"+tag+",%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []userRow
	if err := q.Order("name ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("search mentors: %w", err)
	}

	out := make([]mentorbridge.User, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec.User)
	}
	return out, nil
}

// CountUsersByRole returns the number of users per stored role.
func (s *Store) CountUsersByRole(ctx context.Context) (map[mentorbridge.Role]int64, error) {
	var rows []struct {
		Role string
		N    int64
	}
	err := s.db.WithContext(ctx).Model(&userRow{}).
		Select("role, COUNT(*) AS n").Group("role").Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	out := make(map[mentorbridge.Role]int64, len(rows))
	for _, r := range rows {
		out[mentorbridge.Role(r.Role)] = r.N
	}
	return out, nil
}

func userLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return mentorbridge.ErrUserNotFound
	}
	return fmt.Errorf("lookup user: %w", err)
}
