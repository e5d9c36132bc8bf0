package product

import (
	"strings"

	"github.com/acme/product-importer/internal/apperror"
)

const (
	defaultPerPage = 25
	maxPerPage     = 200
)

type ListRequest struct {
	Query   string
	Active  *bool
	Page    int
	PerPage int
}

func (r *ListRequest) Validate() *apperror.AppError {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.PerPage <= 0 {
		r.PerPage = defaultPerPage
	}
	if r.PerPage > maxPerPage {
		return apperror.Newf(apperror.BadRequest, "perPage cannot exceed %d", maxPerPage)
	}
	return nil
}

type CreateRequest struct {
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

func (r *CreateRequest) Validate() *apperror.AppError {
	r.SKU = strings.TrimSpace(r.SKU)
	r.Name = strings.TrimSpace(r.Name)
	if r.SKU == "" {
		return apperror.New(apperror.BadRequest, "sku is required")
	}
	if r.Name == "" {
		return apperror.New(apperror.BadRequest, "name is required")
	}
	return nil
}

type UpdateRequest struct {
	ID          int64  `json:"-"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      *bool  `json:"active"`
}

func (r *UpdateRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid product id")
	}
	r.SKU = strings.TrimSpace(r.SKU)
	r.Name = strings.TrimSpace(r.Name)
	if r.SKU == "" {
		return apperror.New(apperror.BadRequest, "sku is required")
	}
	if r.Name == "" {
		return apperror.New(apperror.BadRequest, "name is required")
	}
	return nil
}
