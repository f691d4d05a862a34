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

// OfferRepository is the read side of the booking collaborator. The engine
// only flips offer status to mirror settlement progress.
type OfferRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*dbm.Offer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status dbm.OfferStatus) error
}

type offerRepository struct {
	db *gorm.DB
}

func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &offerRepository{db: db}
}

func (r *offerRepository) GetByID(ctx context.Context, id uuid.UUID) (*dbm.Offer, error) {
	var offer dbm.Offer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrOfferNotFound
		}
		return nil, fmt.Errorf("%w: %v", utils.ErrDatabaseError, err)
	}
	return &offer, nil
}

func (r *offerRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status dbm.OfferStatus) error {
	res := r.db.WithContext(ctx).
		Model(&dbm.Offer{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", utils.ErrDatabaseError, res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.ErrOfferNotFound
	}
	return nil
}
