package shop

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/solveprint/printshop/internal/cache"
	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/entity"
	repo "github.com/solveprint/printshop/internal/repository/shop"
	"github.com/solveprint/printshop/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/solveprint/printshop/service/shop")

var vpaPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9.\-]{1,63}$`)

// Repository is the persistence the service depends on.
type Repository interface {
	Get(ctx context.Context, ownerID string) (*entity.ShopSettings, error)
	Upsert(ctx context.Context, settings *entity.ShopSettings) error
}

// Service manages shop settings with a cache-aside read path.
type Service struct {
	repo        Repository
	cache       cache.Store
	cacheTTL    time.Duration
	logger      *zap.Logger
	ownerID     string
	defaultName string
	now         func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Repository, p.Cache, p.Config, p.Logger)
}

// New builds a Service from explicit collaborators.
func New(r Repository, store cache.Store, cfg config.Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        r,
		cache:       store,
		cacheTTL:    cfg.Cache.DefaultTTL,
		logger:      logger,
		ownerID:     cfg.Shop.OwnerID,
		defaultName: cfg.Shop.DefaultName,
		now:         time.Now,
	}
}

// OwnerID is the owner whose settings gate uploads.
func (s *Service) OwnerID() string { return s.ownerID }

// UpdateInput carries optional settings changes; nil fields are left as is.
type UpdateInput struct {
	ShopName      *string
	IsOpen        *bool
	PrimaryVPA    *string
	BackupVPA     *string
	ActiveVPAType *string
}

func (s *Service) defaults(ownerID string) *entity.ShopSettings {
	return &entity.ShopSettings{
		OwnerID:       ownerID,
		ShopName:      s.defaultName,
		IsOpen:        true,
		ActiveVPAType: entity.VPAPrimary,
	}
}

// Get returns the owner's settings, or defaults when none were saved.
func (s *Service) Get(ctx context.Context, ownerID string) (*entity.ShopSettings, error) {
	ctx, span := serviceTracer.Start(ctx, "ShopService.Get", trace.WithAttributes(attribute.String("shop.owner_id", ownerID)))
	defer span.End()

	var cached entity.ShopSettings
	err := s.cacheGet(ctx, ownerID, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("shop settings cache read failed", zap.String("owner_id", ownerID), zap.Error(err))
	}

	settings, err := s.repo.Get(ctx, ownerID)
	if errors.Is(err, repo.ErrNotFound) {
		return s.defaults(ownerID), nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load shop settings", errorbank.WithCause(err))
	}

	if err := s.cacheSet(ctx, settings); err != nil {
		s.logger.Warn("shop settings cache write failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
	return settings, nil
}

// Update validates and persists a settings change.
func (s *Service) Update(ctx context.Context, ownerID string, in UpdateInput) (*entity.ShopSettings, error) {
	ctx, span := serviceTracer.Start(ctx, "ShopService.Update", trace.WithAttributes(attribute.String("shop.owner_id", ownerID)))
	defer span.End()

	settings, err := s.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	next := *settings

	if in.ShopName != nil {
		name := strings.TrimSpace(*in.ShopName)
		if name == "" {
			return nil, errorbank.BadRequest("shop name must not be empty")
		}
		next.ShopName = name
	}
	if in.IsOpen != nil {
		next.IsOpen = *in.IsOpen
	}
	if in.PrimaryVPA != nil {
		vpa, err := normaliseVPA(*in.PrimaryVPA)
		if err != nil {
			return nil, err
		}
		next.PrimaryVPA = vpa
	}
	if in.BackupVPA != nil {
		vpa, err := normaliseVPA(*in.BackupVPA)
		if err != nil {
			return nil, err
		}
		next.BackupVPA = vpa
	}
	if in.ActiveVPAType != nil {
		switch t := entity.VPAType(strings.ToLower(strings.TrimSpace(*in.ActiveVPAType))); t {
		case entity.VPAPrimary, entity.VPABackup:
			next.ActiveVPAType = t
		default:
			return nil, errorbank.BadRequest("active_vpa_type must be primary or backup",
				errorbank.WithDetail("active_vpa_type", *in.ActiveVPAType))
		}
	}

	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Upsert(ctx, &next); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to save shop settings", errorbank.WithCause(err))
	}

	if err := s.cacheDelete(ctx, ownerID); err != nil {
		s.logger.Warn("shop settings cache invalidation failed", zap.String("owner_id", ownerID), zap.Error(err))
	}
	s.logger.Info("shop settings updated",
		zap.String("owner_id", ownerID),
		zap.Bool("is_open", next.IsOpen),
		zap.String("active_vpa_type", string(next.ActiveVPAType)),
	)
	return &next, nil
}

// SetOpen toggles whether the shop accepts new orders.
func (s *Service) SetOpen(ctx context.Context, ownerID string, open bool) (*entity.ShopSettings, error) {
	return s.Update(ctx, ownerID, UpdateInput{IsOpen: &open})
}

// IsOpen reports whether the configured shop accepts uploads.
func (s *Service) IsOpen(ctx context.Context) (bool, error) {
	settings, err := s.Get(ctx, s.ownerID)
	if err != nil {
		return false, err
	}
	return settings.IsOpen, nil
}

// Current returns the configured shop's settings.
func (s *Service) Current(ctx context.Context) (*entity.ShopSettings, error) {
	return s.Get(ctx, s.ownerID)
}

func normaliseVPA(raw string) (string, error) {
	vpa := strings.TrimSpace(raw)
	if vpa == "" {
		return "", nil
	}
	if !vpaPattern.MatchString(vpa) {
		return "", errorbank.BadRequest("payment address must look like name@bank", errorbank.WithDetail("vpa", raw))
	}
	return strings.ToLower(vpa), nil
}

func cacheKey(ownerID string) string {
	return "shop:settings:" + ownerID
}

func (s *Service) cacheGet(ctx context.Context, ownerID string, v *entity.ShopSettings) error {
	if s.cache == nil {
		return cache.ErrCacheMiss
	}
	return cache.GetJSON(ctx, s.cache, cacheKey(ownerID), v)
}

func (s *Service) cacheSet(ctx context.Context, settings *entity.ShopSettings) error {
	if s.cache == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, cacheKey(settings.OwnerID), settings, s.cacheTTL)
}

func (s *Service) cacheDelete(ctx context.Context, ownerID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, cacheKey(ownerID))
}
