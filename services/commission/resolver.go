package commission

import (
	"context"
	"errors"
	"time"

	"affiliate-platform/pkg/config"
	"affiliate-platform/pkg/rediskey"
	"affiliate-platform/pkg/repository"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver answers "which partner owns this campaign" from the local read
// model, fronted by redis. An empty partner id with a nil error means the
// campaign has no registered partner; that is a business outcome, not a fault.
type Resolver struct {
	cache        *redis.Client
	ttl          time.Duration
	associations repository.Repository[PartnerAssociation]
}

type ResolverParams struct {
	fx.In
	DB     *gorm.DB
	Cache  *redis.Client `optional:"true"`
	Config *config.Config
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		cache:        p.Cache,
		ttl:          p.Config.Redis.PartnerTTL,
		associations: repository.ProvideStore[PartnerAssociation](p.DB),
	}
}

func (r *Resolver) FindPartnerIDForCampaign(ctx context.Context, campaignID string) (string, error) {
	key := rediskey.BuildPartnerKey(campaignID)

	if r.cache != nil {
		partnerID, err := r.cache.Get(ctx, key).Result()
		if err == nil {
			return partnerID, nil
		}
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("partner cache read failed, falling back to read model",
				zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}

	association, err := r.associations.FindOne(ctx, &PartnerAssociation{CampaignID: campaignID})
	if err != nil {
		return "", err
	}
	if association == nil {
		return "", nil
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, association.PartnerID, r.ttl).Err(); err != nil {
			zap.L().Warn("partner cache write failed",
				zap.String("campaign_id", campaignID), zap.Error(err))
		}
	}

	return association.PartnerID, nil
}

// Invalidate drops the cached partner for a campaign after its association
// changed.
func (r *Resolver) Invalidate(ctx context.Context, campaignID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, rediskey.BuildPartnerKey(campaignID)).Err(); err != nil {
		zap.L().Warn("partner cache invalidation failed",
			zap.String("campaign_id", campaignID), zap.Error(err))
	}
}
