// Package drinks defines the catalog entity, its public projections and the
// contract for persisting it.
package drinks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the longest title the catalog accepts, in characters.
const MaxTitleLength = 80

var (
	ErrNotFound       = errors.New("drink not found")
	ErrDuplicateTitle = errors.New("a drink with this title already exists")
)

// Ingredient is one entry of a recipe. Parts is a relative quantity.
type Ingredient struct {
	Color string  `json:"color" yaml:"color"`
	Name  string  `json:"name" yaml:"name"`
	Parts float64 `json:"parts" yaml:"parts"`
}

// Drink is a catalog item. ID is assigned by the repository on creation.
type Drink struct {
	ID     int64
	Title  string
	Recipe []Ingredient
}

// ShortIngredient is the public projection of an ingredient: the name is
// withheld.
type ShortIngredient struct {
	Color string  `json:"color"`
	Parts float64 `json:"parts"`
}

type ShortDrink struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

type LongDrink struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

func (d Drink) Short() ShortDrink {
	recipe := make([]ShortIngredient, 0, len(d.Recipe))
	for _, i := range d.Recipe {
		recipe = append(recipe, ShortIngredient{Color: i.Color, Parts: i.Parts})
	}

	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

func (d Drink) Long() LongDrink {
	recipe := make([]Ingredient, len(d.Recipe))
	copy(recipe, d.Recipe)

	return LongDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// ValidationError lists the reasons a drink cannot be stored.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid drink: %s", strings.Join(e.Problems, "; "))
}

// Validate checks the drink against the catalog rules, returning a
// *ValidationError describing every violation.
func (d Drink) Validate() error {
	var problems []string

	title := strings.TrimSpace(d.Title)
	switch {
	case title == "":
		problems = append(problems, "title is required")
	case utf8.RuneCountInString(title) > MaxTitleLength:
		problems = append(problems, fmt.Sprintf("title must be at most %d characters", MaxTitleLength))
	}

	if len(d.Recipe) == 0 {
		problems = append(problems, "recipe requires at least one ingredient")
	}

	for n, i := range d.Recipe {
		if strings.TrimSpace(i.Color) == "" {
			problems = append(problems, fmt.Sprintf("ingredient %d: color is required", n))
		}
		if strings.TrimSpace(i.Name) == "" {
			problems = append(problems, fmt.Sprintf("ingredient %d: name is required", n))
		}
		if i.Parts <= 0 {
			problems = append(problems, fmt.Sprintf("ingredient %d: parts must be positive", n))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}

	return nil
}

// Repository persists drinks. Implementations return ErrNotFound for unknown
// IDs and ErrDuplicateTitle when a title is already taken.
type Repository interface {
	List(ctx context.Context) ([]Drink, error)
	Get(ctx context.Context, id int64) (Drink, error)
	Create(ctx context.Context, drink Drink) (Drink, error)
	Update(ctx context.Context, drink Drink) (Drink, error)
	Delete(ctx context.Context, id int64) error
}
