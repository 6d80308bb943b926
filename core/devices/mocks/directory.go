package mocks

import (
	"context"

	"lockcode-manager/core/devices"

	"github.com/stretchr/testify/mock"
)

// Directory is a mock implementation of devices.Directory
type Directory struct {
	mock.Mock
}

func (m *Directory) ListLocks(ctx context.Context, page int) (*devices.LockPage, error) {
	args := m.Called(ctx, page)
	if p, ok := args.Get(0).(*devices.LockPage); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Directory) ListPasscodeSlots(ctx context.Context, lockID int64, page int) (*devices.SlotPage, error) {
	args := m.Called(ctx, lockID, page)
	if p, ok := args.Get(0).(*devices.SlotPage); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Directory) ChangePasscode(ctx context.Context, req devices.ChangeRequest) (*devices.ChangeResponse, error) {
	args := m.Called(ctx, req)
	if r, ok := args.Get(0).(*devices.ChangeResponse); ok {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
