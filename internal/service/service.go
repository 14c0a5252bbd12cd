// Package service orchestrates the validation, persistence, and dispatch
// engines behind the letter operations the API exposes. Every operation
// validates first; a request that fails validation never touches the
// store or the transport.
package service

import (
	"context"
	"log/slog"

	"github.com/busybox42/lettera/internal/catalog"
	"github.com/busybox42/lettera/internal/dispatch"
	"github.com/busybox42/lettera/internal/letter"
	"github.com/busybox42/lettera/internal/store"
	"github.com/busybox42/lettera/internal/validation"
)

// Service wires the engines together.
type Service struct {
	store      store.Store
	catalog    *catalog.Catalog
	validator  *validation.Engine
	dispatcher *dispatch.Engine
	logger     *slog.Logger
}

// New creates the service.
func New(st store.Store, cat *catalog.Catalog, validator *validation.Engine, dispatcher *dispatch.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default().With("component", "service")
	}
	return &Service{
		store:      st,
		catalog:    cat,
		validator:  validator,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// GetLetter returns a stored letter by identifier.
func (s *Service) GetLetter(ctx context.Context, id string) (*letter.Letter, error) {
	if errs := s.validator.Validate(ctx, validation.OpGet, &letter.Letter{ID: id}); len(errs) > 0 {
		return nil, letter.NewValidationError(errs)
	}
	return s.store.GetLetter(ctx, id)
}

// FindLetters returns every letter carrying the given search parameter.
// Exactly one key-value pair is accepted.
func (s *Service) FindLetters(ctx context.Context, params []letter.SearchParameter) ([]*letter.Letter, error) {
	probe := &letter.Letter{SearchParameters: params}
	if errs := s.validator.Validate(ctx, validation.OpFind, probe); len(errs) > 0 {
		return nil, letter.NewValidationError(errs)
	}

	names, err := s.catalog.Names(ctx)
	if err != nil {
		return nil, err
	}

	return s.store.FindLetters(ctx, params[0].Key, params[0].Value, names)
}

// CreateLetter validates and persists a new letter together with its
// search parameters.
func (s *Service) CreateLetter(ctx context.Context, l *letter.Letter) (*letter.Letter, error) {
	if errs := s.validator.Validate(ctx, validation.OpCreate, l); len(errs) > 0 {
		return nil, letter.NewValidationError(errs)
	}

	stored, err := s.store.SaveLetter(ctx, l)
	if err != nil {
		return nil, err
	}

	s.logger.Info("letter created",
		"letter_id", stored.ID,
		"status", stored.EffectiveStatus().String(),
		"application_id", stored.ApplicationID,
	)

	if len(l.SearchParameters) > 0 {
		stored.SearchParameters = l.SearchParameters
		if err := s.storeTags(ctx, stored); err != nil {
			return nil, err
		}
	}

	return stored, nil
}

// UpdateLetter applies the caller's changes to a stored letter. Search
// parameters on the request replace the stored set; a request without any
// leaves the stored set alone.
func (s *Service) UpdateLetter(ctx context.Context, l *letter.Letter) (*letter.Letter, error) {
	if errs := s.validator.Validate(ctx, validation.OpUpdate, l); len(errs) > 0 {
		return nil, letter.NewValidationError(errs)
	}

	updated, err := s.store.UpdateLetter(ctx, l)
	if err != nil {
		return nil, err
	}

	s.logger.Info("letter updated",
		"letter_id", updated.ID,
		"status", updated.EffectiveStatus().String(),
	)

	if len(l.SearchParameters) > 0 {
		updated.SearchParameters = l.SearchParameters
		if err := s.storeTags(ctx, updated); err != nil {
			return nil, err
		}
	}

	return updated, nil
}

// DeleteLetter removes a stored letter and returns its last state.
func (s *Service) DeleteLetter(ctx context.Context, id string) (*letter.Letter, error) {
	if errs := s.validator.Validate(ctx, validation.OpDelete, &letter.Letter{ID: id}); len(errs) > 0 {
		return nil, letter.NewValidationError(errs)
	}

	deleted, err := s.store.DeleteLetter(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("letter deleted", "letter_id", id)
	return deleted, nil
}

// GetSearchParameters returns the stored search parameters of a letter.
func (s *Service) GetSearchParameters(ctx context.Context, id string) ([]letter.SearchParameter, error) {
	if errs := s.validator.Validate(ctx, validation.OpSearchParameters, &letter.Letter{ID: id}); len(errs) > 0 {
		return nil, letter.NewValidationError(errs)
	}
	return s.store.GetSearchParameters(ctx, id)
}

// SendLetter dispatches a letter without persisting anything.
func (s *Service) SendLetter(ctx context.Context, req *letter.SendRequest) error {
	if errs := s.validator.ValidateSend(req); len(errs) > 0 {
		return letter.NewValidationError(errs)
	}

	if err := s.dispatcher.Send(ctx, req); err != nil {
		return err
	}

	s.logger.Info("letter dispatched",
		"level", s.dispatcher.Level().String(),
		"to", len(req.Letter.EmailInfo.To),
	)
	return nil
}

// storeTags replaces the letter's stored search parameters with the set
// carried on l, validated against the tag-name catalog.
func (s *Service) storeTags(ctx context.Context, l *letter.Letter) error {
	names, err := s.catalog.Names(ctx)
	if err != nil {
		return err
	}
	return s.store.StoreSearchParameters(ctx, l, names)
}
