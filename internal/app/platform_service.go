package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"botdesk/internal/logger"
	"botdesk/internal/model"
	"botdesk/internal/repository"
)

const (
	platformCacheKey  = "platform_setting"
	platformLogoPath  = "platform/logo"
	platformCacheTTL  = 10 * time.Minute
	platformCacheScan = 30 * time.Minute
)

// PlatformService manages the single platform branding record. Reads are
// served from an in-process cache that every write replaces after the
// database write succeeds.
type PlatformService struct {
	settings *repository.PlatformSettingRepository
	uploader objectUploader
	cache    *cache.Cache
}

func NewPlatformService(settings *repository.PlatformSettingRepository, store ObjectStore, log logger.Logger) *PlatformService {
	return &PlatformService{
		settings: settings,
		uploader: objectUploader{store: store, log: log, now: time.Now},
		cache:    cache.New(platformCacheTTL, platformCacheScan),
	}
}

func (s *PlatformService) Get(ctx context.Context) (*model.PlatformSetting, error) {
	if x, found := s.cache.Get(platformCacheKey); found {
		setting := x.(model.PlatformSetting)
		return &setting, nil
	}
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(platformCacheKey, *setting, cache.DefaultExpiration)
	return setting, nil
}

func (s *PlatformService) SetLogo(ctx context.Context, upload Upload) (*model.PlatformSetting, error) {
	if err := validateChatbotUpload(upload); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(upload.ContentType, "image/") {
		return nil, fmt.Errorf("%w: logo must be an image", ErrUploadRejected)
	}

	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := s.uploader.storeAll(ctx, platformLogoPath, []Upload{upload})
	if err != nil {
		return nil, err
	}

	previousKey := setting.LogoKey
	setting.LogoURL = stored[0].URL
	setting.LogoKey = stored[0].Key
	if err := s.save(ctx, setting); err != nil {
		s.uploader.discard(context.WithoutCancel(ctx), stored)
		return nil, err
	}
	s.uploader.remove(ctx, previousKey)
	return setting, nil
}

func (s *PlatformService) DeleteLogo(ctx context.Context) (*model.PlatformSetting, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	previousKey := setting.LogoKey
	setting.LogoURL = ""
	setting.LogoKey = ""
	if err := s.save(ctx, setting); err != nil {
		return nil, err
	}
	s.uploader.remove(ctx, previousKey)
	return setting, nil
}

func (s *PlatformService) save(ctx context.Context, setting *model.PlatformSetting) error {
	if err := s.settings.Save(ctx, setting); err != nil {
		return err
	}
	s.cache.Set(platformCacheKey, *setting, cache.DefaultExpiration)
	return nil
}
