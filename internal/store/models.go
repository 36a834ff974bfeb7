package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coffee-shop/drinks-api/internal/drinks"
)

// DrinkModel is the persisted form of a drink. The recipe is stored as a
// JSON array of ingredients.
type DrinkModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"size:80;uniqueIndex;not null"`
	Recipe    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (DrinkModel) TableName() string {
	return "drinks"
}

func modelFromDrink(d drinks.Drink) (DrinkModel, error) {
	recipe, err := json.Marshal(d.Recipe)
	if err != nil {
		return DrinkModel{}, fmt.Errorf("encode recipe: %w", err)
	}

	return DrinkModel{
		ID:     d.ID,
		Title:  d.Title,
		Recipe: string(recipe),
	}, nil
}

func drinkFromModel(m DrinkModel) (drinks.Drink, error) {
	var recipe []drinks.Ingredient
	if err := json.Unmarshal([]byte(m.Recipe), &recipe); err != nil {
		return drinks.Drink{}, fmt.Errorf("decode recipe of drink %d: %w", m.ID, err)
	}

	return drinks.Drink{
		ID:     m.ID,
		Title:  m.Title,
		Recipe: recipe,
	}, nil
}
