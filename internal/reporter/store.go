package reporter

import (
	"context"

	"github.com/KirkDiggler/errtransform/internal/errors"
	errorreport "github.com/KirkDiggler/errtransform/internal/repositories/error_report"
	"github.com/KirkDiggler/errtransform/internal/transform"
)

// StoreConfig holds the dependencies of a Store
type StoreConfig struct {
	Repository errorreport.Repository
}

// Validate ensures all required dependencies are provided
func (c *StoreConfig) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Repository == nil {
		vb.RequiredField("repository")
	}
	return vb.Build()
}

// Store records reports in the error report repository
type Store struct {
	repo errorreport.Repository
}

// NewStore creates a Store
func NewStore(cfg *StoreConfig) (*Store, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &Store{repo: cfg.Repository}, nil
}

// Report implements transform.Reporter
func (s *Store) Report(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	input := errorreport.CreateInput{
		Kind:    kindName(err),
		Code:    errors.GetCode(err).String(),
		Message: errors.GetMessage(err),
		Error:   err.Error(),
		Meta:    stringifyMeta(errors.GetMeta(err)),
	}
	if original := errors.OriginalOf(err); original != nil {
		input.Original = original.Error()
	}
	if call, ok := transform.CallFromContext(ctx); ok {
		input.Group = string(call.Group)
		input.Action = call.Action
	}
	for _, frame := range errors.StackOf(err).Frames() {
		input.Stack = append(input.Stack, frame.String())
	}

	if _, cerr := s.repo.Create(ctx, input); cerr != nil {
		return errors.Wrap(cerr, "failed to store error report")
	}
	return nil
}
