package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/store"
)

type UserService struct {
	gw store.Gateway
}

func NewUserService(gw store.Gateway) *UserService {
	return &UserService{gw: gw}
}

type UpdateProfileRequest struct {
	Name      string   `json:"name" binding:"required,max=100"`
	Email     string   `json:"email" binding:"omitempty,email,max=255"`
	Skills    []string `json:"skills" binding:"max=50,dive,max=50"`
	GithubURL string   `json:"github_url" binding:"omitempty,url,max=500"`
	City      string   `json:"city" binding:"max=100"`
}

func (s *UserService) GetProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.gw.GetUser(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err, ErrUserNotFound)
	}
	return user, nil
}

// UpdateProfile creates the caller's profile on first write and overwrites it
// afterwards. Skills are treated as a set.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, req *UpdateProfileRequest) (*models.User, error) {
	user := &models.User{
		ID:        userID,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.TrimSpace(req.Email),
		Skills:    normalizeSkills(req.Skills),
		GithubURL: strings.TrimSpace(req.GithubURL),
		City:      strings.TrimSpace(req.City),
	}
	if err := s.gw.UpsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}
	return s.GetProfile(ctx, userID)
}

func normalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
