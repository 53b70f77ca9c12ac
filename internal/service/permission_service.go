package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"appgrav/internal/config"
	"appgrav/internal/model"
	"appgrav/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// PermissionService resolves effective permissions: the union of grants from
// currently-valid role assignments, overridden by currently-valid direct
// per-user grants (a direct grant always wins, in both directions).
type PermissionService interface {
	EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]model.EffectivePermission, error)

	// HasPermission answers a single code without materializing the full
	// set — it gates every mutating operation in the system.
	HasPermission(ctx context.Context, userID uuid.UUID, code string) (bool, error)

	// Invalidate drops the cached set after any role/grant/account change.
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type permissionService struct {
	repo repository.RBACRepository
	rdb  *redis.Client // nil disables caching
	ttl  time.Duration
	now  func() time.Time
}

func NewPermissionService(repo repository.RBACRepository, rdb *redis.Client, cfg *config.Config) PermissionService {
	return &permissionService{repo: repo, rdb: rdb, ttl: cfg.PermissionCacheTTL(), now: time.Now}
}

func permCacheKey(userID uuid.UUID) string { return "perm:" + userID.String() }

func (s *permissionService) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]model.EffectivePermission, error) {
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, permCacheKey(userID)).Bytes(); err == nil {
			var set []model.EffectivePermission
			if jsonErr := json.Unmarshal(cached, &set); jsonErr == nil {
				return set, nil
			}
		}
	}

	set, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.rdb != nil {
		if data, err := json.Marshal(set); err == nil {
			if err := s.rdb.Set(ctx, permCacheKey(userID), data, s.ttl).Err(); err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("permission cache write failed")
			}
		}
	}
	return set, nil
}

func (s *permissionService) resolve(ctx context.Context, userID uuid.UUID) ([]model.EffectivePermission, error) {
	now := s.now()

	assignments, err := s.repo.ValidAssignments(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]model.EffectivePermission)
	for _, a := range assignments {
		if !a.Role.IsActive {
			continue
		}
		for _, rp := range a.Role.Permissions {
			p := rp.Permission
			byCode[p.Code] = model.EffectivePermission{
				Code:        p.Code,
				Module:      p.Module,
				Action:      p.Action,
				Source:      "role",
				IsSensitive: p.IsSensitive,
			}
		}
	}

	overrides, err := s.repo.ValidOverrides(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		p := o.Permission
		if !o.IsGranted {
			delete(byCode, p.Code)
			continue
		}
		byCode[p.Code] = model.EffectivePermission{
			Code:        p.Code,
			Module:      p.Module,
			Action:      p.Action,
			Source:      "direct",
			IsSensitive: p.IsSensitive,
		}
	}

	set := make([]model.EffectivePermission, 0, len(byCode))
	for _, p := range byCode {
		set = append(set, p)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Code < set[j].Code })
	return set, nil
}

func (s *permissionService) HasPermission(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	now := s.now()

	// Direct override first: it beats role-derived grants in both directions.
	override, err := s.repo.FindOverrideForCode(ctx, userID, code, now)
	if err == nil {
		return override.IsGranted, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	return s.repo.HasRoleGrant(ctx, userID, code, now)
}

func (s *permissionService) Invalidate(ctx context.Context, userID uuid.UUID) {
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, permCacheKey(userID)).Err(); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("permission cache invalidation failed")
	}
}
