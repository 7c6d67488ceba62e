package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"taskhub-notify/internal/service/channel"
)

type Sender struct {
	mock.Mock
}

func (m *Sender) Send(ctx context.Context, d channel.Delivery) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}
