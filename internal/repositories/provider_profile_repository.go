package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbm "allpartyrental/internal/models/db_models"
	"allpartyrental/pkg/utils"
)

// ProviderProfileRepository reads provider payout destinations. A missing
// profile is not an error at this layer; the resolver decides what a
// provider without one means.
type ProviderProfileRepository interface {
	GetByProviderID(ctx context.Context, providerID uuid.UUID) (*dbm.ProviderProfile, error)
}

type providerProfileRepository struct {
	db *gorm.DB
}

func NewProviderProfileRepository(db *gorm.DB) ProviderProfileRepository {
	return &providerProfileRepository{db: db}
}

func (r *providerProfileRepository) GetByProviderID(ctx context.Context, providerID uuid.UUID) (*dbm.ProviderProfile, error) {
	var profile dbm.ProviderProfile
	if err := r.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return &profile, nil
}

// Memory implementations back tests and credential-free runs.

type memoryOfferRepository struct {
	offers map[uuid.UUID]*dbm.Offer
}

func NewMemoryOfferRepository(offers ...*dbm.Offer) OfferRepository {
	m := &memoryOfferRepository{offers: make(map[uuid.UUID]*dbm.Offer)}
	for _, o := range offers {
		m.offers[o.ID] = o
	}
	return m
}

func (r *memoryOfferRepository) GetByID(ctx context.Context, id uuid.UUID) (*dbm.Offer, error) {
	offer, ok := r.offers[id]
	if !ok {
		return nil, utils.ErrOfferNotFound
	}
	clone := *offer
	return &clone, nil
}

func (r *memoryOfferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status dbm.OfferStatus) error {
	offer, ok := r.offers[id]
	if !ok {
		return utils.ErrOfferNotFound
	}
	offer.Status = status
	return nil
}

type memoryProviderProfileRepository struct {
	profiles map[uuid.UUID]*dbm.ProviderProfile
}

func NewMemoryProviderProfileRepository(profiles ...*dbm.ProviderProfile) ProviderProfileRepository {
	m := &memoryProviderProfileRepository{profiles: make(map[uuid.UUID]*dbm.ProviderProfile)}
	for _, p := range profiles {
		m.profiles[p.ProviderID] = p
	}
	return m
}

func (r *memoryProviderProfileRepository) GetByProviderID(ctx context.Context, providerID uuid.UUID) (*dbm.ProviderProfile, error) {
	profile, ok := r.profiles[providerID]
	if !ok {
		return nil, nil
	}
	clone := *profile
	return &clone, nil
}
