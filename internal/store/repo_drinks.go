package store

import (
	"context"
	"errors"

	"github.com/coffee-shop/drinks-api/internal/drinks"
	"gorm.io/gorm"
)

var _ drinks.Repository = (*DrinkRepository)(nil)

type DrinkRepository struct {
	db *gorm.DB
}

func NewDrinkRepository(db *gorm.DB) *DrinkRepository {
	return &DrinkRepository{db: db}
}

func (r *DrinkRepository) List(ctx context.Context) ([]drinks.Drink, error) {
	var models []DrinkModel
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	out := make([]drinks.Drink, 0, len(models))
	for _, model := range models {
		d, err := drinkFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *DrinkRepository) Get(ctx context.Context, id int64) (drinks.Drink, error) {
	model, err := r.first(r.db.WithContext(ctx), id)
	if err != nil {
		return drinks.Drink{}, err
	}
	return drinkFromModel(model)
}

func (r *DrinkRepository) Create(ctx context.Context, drink drinks.Drink) (drinks.Drink, error) {
	model, err := modelFromDrink(drink)
	if err != nil {
		return drinks.Drink{}, err
	}
	// IDs are always assigned by the database
	model.ID = 0

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := titleAvailable(tx, model.Title, 0); err != nil {
			return err
		}
		return tx.Create(&model).Error
	})
	if err != nil {
		return drinks.Drink{}, translate(err)
	}

	return drinkFromModel(model)
}

func (r *DrinkRepository) Update(ctx context.Context, drink drinks.Drink) (drinks.Drink, error) {
	update, err := modelFromDrink(drink)
	if err != nil {
		return drinks.Drink{}, err
	}

	var stored DrinkModel
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := r.first(tx, drink.ID)
		if err != nil {
			return err
		}
		if err := titleAvailable(tx, update.Title, drink.ID); err != nil {
			return err
		}

		existing.Title = update.Title
		existing.Recipe = update.Recipe
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}

		stored = existing
		return nil
	})
	if err != nil {
		return drinks.Drink{}, translate(err)
	}

	return drinkFromModel(stored)
}

func (r *DrinkRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&DrinkModel{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return drinks.ErrNotFound
	}
	return nil
}

func (r *DrinkRepository) first(db *gorm.DB, id int64) (DrinkModel, error) {
	var model DrinkModel
	err := db.First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DrinkModel{}, drinks.ErrNotFound
		}
		return DrinkModel{}, err
	}
	return model, nil
}

// titleAvailable checks uniqueness ahead of the write so the conflict is
// reported consistently regardless of the driver's constraint errors.
func titleAvailable(tx *gorm.DB, title string, exceptID int64) error {
	var count int64
	err := tx.Model(&DrinkModel{}).
		Where("title = ? AND id <> ?", title, exceptID).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return drinks.ErrDuplicateTitle
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return drinks.ErrDuplicateTitle
	}
	return err
}
