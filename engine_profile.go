package mentorbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/mentorbridge/mentorbridge/permission"
)

const (
	defaultMentorLimit = 50
	maxMentorLimit     = 200
	maxNameLength      = 200
	maxBioLength       = 4000
)

// Me returns the caller's own user record.
func (e *Engine) Me(ctx context.Context, id *Identity) (User, error) {
	if err := e.require(id, permission.ActionViewMe); err != nil {
		return User{}, err
	}
	rec, err := e.credentials.GetUserByID(ctx, id.UserID)
	if err != nil {
		return User{}, e.backendError("me", err)
	}
	return rec.User, nil
}

// UpdateProfile applies a partial update to the caller's own record.
// Expertise and YearsExperience are rejected unless the caller is a mentor.
func (e *Engine) UpdateProfile(ctx context.Context, id *Identity, update ProfileUpdate) (User, error) {
	if err := e.require(id, permission.ActionEditProfile); err != nil {
		return User{}, err
	}

	clean, err := normalizeUpdate(id.Role, update)
	if err != nil {
		return User{}, err
	}

	rec, err := e.credentials.UpdateProfile(ctx, id.UserID, clean)
	if err != nil {
		return User{}, e.backendError("profile.update", err)
	}

	e.metricInc(MetricProfileUpdated)
	e.emitAudit(ctx, auditEventProfileUpdated, true, id.UserID, id.Role, "", nil, nil)
	return rec.User, nil
}

func normalizeUpdate(role Role, u ProfileUpdate) (ProfileUpdate, error) {
	if role != RoleMentor && (u.Expertise != nil || u.YearsExperience != nil) {
		return ProfileUpdate{}, ErrMentorFieldsNotAllowed
	}

	out := ProfileUpdate{}
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" || len(name) > maxNameLength {
			return ProfileUpdate{}, fmt.Errorf("%w: name must be 1 to %d bytes", ErrInvalidInput, maxNameLength)
		}
		out.Name = &name
	}
	if u.College != nil {
		college := strings.TrimSpace(*u.College)
		out.College = &college
	}
	if u.Bio != nil {
		bio := strings.TrimSpace(*u.Bio)
		if len(bio) > maxBioLength {
			return ProfileUpdate{}, fmt.Errorf("%w: bio exceeds %d bytes", ErrInvalidInput, maxBioLength)
		}
		out.Bio = &bio
	}
	if u.Skills != nil {
		skills := cleanTags(*u.Skills)
		out.Skills = &skills
	}
	if u.Expertise != nil {
		expertise := cleanTags(*u.Expertise)
		out.Expertise = &expertise
	}
	if u.YearsExperience != nil {
		if *u.YearsExperience < 0 {
			return ProfileUpdate{}, fmt.Errorf("%w: years_experience must be >= 0", ErrInvalidInput)
		}
		years := *u.YearsExperience
		out.YearsExperience = &years
	}
	return out, nil
}

// SearchMentors lists mentors matching filter. The directory is public.
func (e *Engine) SearchMentors(ctx context.Context, filter MentorFilter) ([]User, error) {
	if e == nil || e.credentials == nil {
		return nil, ErrEngineNotReady
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Expertise = strings.TrimSpace(filter.Expertise)
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultMentorLimit
	case filter.Limit > maxMentorLimit:
		filter.Limit = maxMentorLimit
	}

	users, err := e.credentials.SearchMentors(ctx, filter)
	if err != nil {
		return nil, e.backendError("mentors.search", err)
	}
	return users, nil
}

// GetUser returns the public record of userID.
func (e *Engine) GetUser(ctx context.Context, userID string) (User, error) {
	if e == nil || e.credentials == nil {
		return User{}, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	rec, err := e.credentials.GetUserByID(ctx, userID)
	if err != nil {
		return User{}, e.backendError("user.get", err)
	}
	return rec.User, nil
}
