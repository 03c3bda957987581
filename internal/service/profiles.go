package service

import (
	"context"

	"ticketshow/internal/logger"
	"ticketshow/internal/models"
)

type ProfileCache interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
	SetProfile(ctx context.Context, user *models.User) error
}

type IdentityProvider interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// ProfileService resolves identity profiles: cache, then the identity
// provider, then the local users mirror. Any of the three may be nil.
type ProfileService struct {
	cache    ProfileCache
	identity IdentityProvider
	users    UserFinder
}

func NewProfileService(cache ProfileCache, identity IdentityProvider, users UserFinder) *ProfileService {
	return &ProfileService{
		cache:    cache,
		identity: identity,
		users:    users,
	}
}

// Resolve returns nil without error when no source knows the user
func (p *ProfileService) Resolve(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, nil
	}
	log := logger.WithContext(ctx).With("profile_user_id", userID)

	if p.cache != nil {
		user, err := p.cache.GetProfile(ctx, userID)
		if err != nil {
			log.Warn("Profile cache lookup failed", "error", err)
		} else if user != nil {
			return user, nil
		}
	}

	var lastErr error
	if p.identity != nil {
		user, err := p.identity.GetUser(ctx, userID)
		if err != nil {
			log.Warn("Identity provider lookup failed", "error", err)
			lastErr = err
		} else if user != nil {
			if p.cache != nil {
				if err := p.cache.SetProfile(ctx, user); err != nil {
					log.Warn("Failed to cache profile", "error", err)
				}
			}
			return user, nil
		}
	}

	if p.users != nil {
		user, err := p.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	return nil, lastErr
}
