package repository

import (
	"context"
	"errors"
	"fmt"

	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/pkg"

	"gorm.io/gorm"
)

// StaffRepository definition provider staff membership lookup
type StaffRepository interface {
	// IsMessagingStaff reports whether userID belongs to the provider's
	// staff set with a role authorized to handle messaging.
	IsMessagingStaff(ctx context.Context, providerID, userID string) (bool, error)
}

type staffRepository struct {
	db *gorm.DB
}

// NewStaffRepository create a StaffRepository
func NewStaffRepository(db *gorm.DB) StaffRepository {
	return &staffRepository{db: db}
}

func (r *staffRepository) IsMessagingStaff(ctx context.Context, providerID, userID string) (bool, error) {
	var staff domain.ProviderStaff
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND user_id = ?", providerID, userID).
		First(&staff).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: staff lookup: %v", domain.ErrDatabase, err)
	}

	return pkg.Contains(domain.MessagingRoles, staff.Role), nil
}
