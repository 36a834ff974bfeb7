package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/coffee-shop/drinks-api/internal/audit"
	"github.com/coffee-shop/drinks-api/internal/drinks"
	"github.com/rs/zerolog"
)

var errorMessages = map[int]string{
	http.StatusBadRequest:            "bad request",
	http.StatusNotFound:              "resource not found",
	http.StatusMethodNotAllowed:      "method not allowed",
	http.StatusRequestEntityTooLarge: "request entity too large",
	http.StatusUnprocessableEntity:   "unprocessable",
	http.StatusInternalServerError:   "internal server error",
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type drinksResponse[T any] struct {
	Success bool `json:"success"`
	Drinks  []T  `json:"drinks"`
}

type deleteResponse struct {
	Success bool  `json:"success"`
	Delete  int64 `json:"delete"`
}

// recipeInput accepts either a single ingredient object or an array of them.
type recipeInput []drinks.Ingredient

func (r *recipeInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single drinks.Ingredient
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*r = recipeInput{single}
		return nil
	}

	var many []drinks.Ingredient
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*r = many
	return nil
}

type drinkInput struct {
	Title  *string      `json:"title"`
	Recipe *recipeInput `json:"recipe"`
}

// apply overwrites the fields present in the input.
func (in drinkInput) apply(d drinks.Drink) drinks.Drink {
	if in.Title != nil {
		d.Title = *in.Title
	}
	if in.Recipe != nil {
		d.Recipe = []drinks.Ingredient(*in.Recipe)
	}
	d.Title = strings.TrimSpace(d.Title)
	return d
}

func handleGetDrinks(repo drinks.Repository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := repo.List(r.Context())
		if err != nil {
			drinkError(w, r, err)
			return
		}

		short := make([]drinks.ShortDrink, 0, len(list))
		for _, d := range list {
			short = append(short, d.Short())
		}

		writeJSON(w, r, http.StatusOK, drinksResponse[drinks.ShortDrink]{Success: true, Drinks: short})
	})
}

func handleGetDrinksDetail(repo drinks.Repository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list, err := repo.List(r.Context())
		if err != nil {
			drinkError(w, r, err)
			return
		}

		long := make([]drinks.LongDrink, 0, len(list))
		for _, d := range list {
			long = append(long, d.Long())
		}

		writeJSON(w, r, http.StatusOK, drinksResponse[drinks.LongDrink]{Success: true, Drinks: long})
	})
}

func handlePostDrink(repo drinks.Repository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in drinkInput
		if !readJSON(w, r, &in) {
			return
		}

		drink := in.apply(drinks.Drink{})
		if err := drink.Validate(); err != nil {
			drinkError(w, r, err)
			return
		}

		created, err := repo.Create(r.Context(), drink)
		if err != nil {
			drinkError(w, r, err)
			return
		}

		audit.Log(r.Context()).Drinks = []int64{created.ID}

		writeJSON(w, r, http.StatusOK, drinksResponse[drinks.LongDrink]{Success: true, Drinks: []drinks.LongDrink{created.Long()}})
	})
}

func handlePatchDrink(repo drinks.Repository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := drinkID(w, r)
		if !ok {
			return
		}

		var in drinkInput
		if !readJSON(w, r, &in) {
			return
		}

		existing, err := repo.Get(r.Context(), id)
		if err != nil {
			drinkError(w, r, err)
			return
		}

		drink := in.apply(existing)
		if err := drink.Validate(); err != nil {
			drinkError(w, r, err)
			return
		}

		updated, err := repo.Update(r.Context(), drink)
		if err != nil {
			drinkError(w, r, err)
			return
		}

		audit.Log(r.Context()).Drinks = []int64{updated.ID}

		writeJSON(w, r, http.StatusOK, drinksResponse[drinks.LongDrink]{Success: true, Drinks: []drinks.LongDrink{updated.Long()}})
	})
}

func handleDeleteDrink(repo drinks.Repository) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := drinkID(w, r)
		if !ok {
			return
		}

		if err := repo.Delete(r.Context(), id); err != nil {
			drinkError(w, r, err)
			return
		}

		audit.Log(r.Context()).Drinks = []int64{id}

		writeJSON(w, r, http.StatusOK, deleteResponse{Success: true, Delete: id})
	})
}

func handleHealthCheck() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// handleNotFound renders unmatched paths in the API's error shape.
func handleNotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestError(w, r, http.StatusNotFound)
	})
}

// handleMethodNotAllowed answers a known path requested with a method it
// does not serve.
func handleMethodNotAllowed(allowed ...string) http.Handler {
	allow := strings.Join(allowed, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		requestError(w, r, http.StatusMethodNotAllowed)
	})
}

// drinkID reads the {id} path value. Anything other than a positive integer
// cannot name a drink.
func drinkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		requestError(w, r, http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	// Ensure that the request body is fully read prior to returning. This
	// avoids issues with blocked connections and connection reuse.
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}

	audit.Log(r.Context()).AddError(err.Error())

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		requestError(w, r, http.StatusRequestEntityTooLarge)
		return false
	}

	requestError(w, r, http.StatusBadRequest)
	return false
}

// drinkError maps a catalog failure to its response status.
func drinkError(w http.ResponseWriter, r *http.Request, err error) {
	audit.Log(r.Context()).AddError(err.Error())

	var invalid *drinks.ValidationError

	switch {
	case errors.Is(err, drinks.ErrNotFound):
		requestError(w, r, http.StatusNotFound)
	case errors.Is(err, drinks.ErrDuplicateTitle), errors.As(err, &invalid):
		requestError(w, r, http.StatusUnprocessableEntity)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("drink catalog operation failed")
		requestError(w, r, http.StatusInternalServerError)
	}
}

func requestError(w http.ResponseWriter, r *http.Request, statusCode int) {
	message, ok := errorMessages[statusCode]
	if !ok {
		message = strings.ToLower(http.StatusText(statusCode))
	}

	writeJSON(w, r, statusCode, errorResponse{
		Success: false,
		Error:   statusCode,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body any) {
	marshalledResponse, err := json.Marshal(body)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("response could not be encoded")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_, err = w.Write(marshalledResponse)
	if err != nil {
		// record failure to log: trying to respond to the client at this
		// point will likely fail
		zerolog.Ctx(r.Context()).Info().Err(err).Msg("failed to write response")
	}
}

// maxRequestSize limits the size of the request body that the server will
// read.
func maxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
