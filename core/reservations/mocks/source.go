package mocks

import (
	"context"
	"time"

	"lockcode-manager/core/reservations"

	"github.com/stretchr/testify/mock"
)

// Source is a mock implementation of reservations.Source
type Source struct {
	mock.Mock
}

func (m *Source) FetchPage(ctx context.Context, page int, cutoff time.Time) (*reservations.Page, error) {
	args := m.Called(ctx, page, cutoff)
	if p, ok := args.Get(0).(*reservations.Page); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Source) PatchReservation(ctx context.Context, id string, patch reservations.Patch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}
