package address

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/shopper"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const maxAddressesPerUser = 20

type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]Address, error)
	Get(ctx context.Context, userID, id uuid.UUID) (Address, error)
	Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (Address, error)
	// Resolve picks the shipping address for a checkout: a saved address for
	// users, otherwise the inline one.
	Resolve(ctx context.Context, owner shopper.Owner, addressID *uuid.UUID, inline *types.ShippingAddress) (types.ShippingAddress, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo *Repository
	tx   txRunner
}

func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "address repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]Address, 0, len(rows))
	for i := range rows {
		out = append(out, fromModel(rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (Address, error) {
	row, err := s.repo.Find(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Address{}, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return fromModel(*row), nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateRequest) (Address, error) {
	if userID == uuid.Nil {
		return Address{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	shipping := req.shipping().Normalized()
	if err := shipping.Validate(); err != nil {
		return Address{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	row := models.Address{
		ID:         uuid.New(),
		UserID:     userID,
		FullName:   shipping.FullName,
		Phone:      ptr(req.Phone),
		Line1:      shipping.Line1,
		Line2:      ptr(req.Line2),
		City:       shipping.City,
		State:      shipping.State,
		PostalCode: shipping.PostalCode,
		Country:    shipping.Country,
		IsDefault:  req.IsDefault,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.Count(ctx, userID)
		if err != nil {
			return err
		}
		if count >= maxAddressesPerUser {
			return pkgerrors.New(pkgerrors.CodeConflict, "address book is full")
		}
		if count == 0 {
			row.IsDefault = true
		}
		if row.IsDefault && count > 0 {
			if err := repo.ClearDefault(ctx, userID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, &row)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return Address{}, err
		}
		return Address{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
	}
	return fromModel(row), nil
}

func (s *service) Resolve(ctx context.Context, owner shopper.Owner, addressID *uuid.UUID, inline *types.ShippingAddress) (types.ShippingAddress, error) {
	if addressID != nil {
		if !owner.IsAuthenticated() {
			return types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "saved addresses require an account")
		}
		saved, err := s.Get(ctx, owner.UserID, *addressID)
		if err != nil {
			return types.ShippingAddress{}, err
		}
		return saved.Shipping(), nil
	}
	if inline == nil {
		return types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	shipping := inline.Normalized()
	if err := shipping.Validate(); err != nil {
		return types.ShippingAddress{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return shipping, nil
}

func ptr(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
