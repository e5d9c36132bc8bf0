package product

import (
	"context"
	"log/slog"
)

type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SetNotifier wires record lifecycle notifications. Optional.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

type ListResponse struct {
	Products []Product `json:"products"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PerPage  int       `json:"perPage"`
}

func (s *Service) List(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	products, total, err := s.repo.List(ctx, ListFilter{
		Query:   req.Query,
		Active:  req.Active,
		Page:    req.Page,
		PerPage: req.PerPage,
	})
	if err != nil {
		return nil, err
	}

	if products == nil {
		products = []Product{}
	}
	return &ListResponse{Products: products, Total: total, Page: req.Page, PerPage: req.PerPage}, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Product, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	p := &Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Active:      true,
	}
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	slog.Info("product created", "id", p.ID, "sku", p.SKU)
	if s.notifier != nil {
		s.notifier.RecordCreated(ctx, *p)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*Product, error) {
	if appErr := req.Validate(); appErr != nil {
		return nil, appErr
	}

	p, err := s.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	p.SKU = req.SKU
	p.Name = req.Name
	p.Description = req.Description
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.RecordUpdated(ctx, *p)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	slog.Info("deleted all products", "count", n)
	return n, nil
}
