package composables

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/planora/planora/modules/projects/domain/aggregates/member"
	"github.com/planora/planora/pkg/constants"
)

var (
	ErrNoLogger      = errors.New("logger not found")
	ErrNoMemberFound = errors.New("no member found in context")
)

// UseLogger returns the logger from the context.
// Panics if no logger was attached; every request and connection context is
// expected to carry one.
func UseLogger(ctx context.Context) *logrus.Entry {
	logger := ctx.Value(constants.LoggerKey)
	if logger == nil {
		panic("logger not found")
	}
	return logger.(*logrus.Entry)
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

// UseMember returns the authenticated team member from the context.
func UseMember(ctx context.Context) (member.Member, error) {
	m, ok := ctx.Value(constants.UserKey).(member.Member)
	if !ok {
		return nil, ErrNoMemberFound
	}
	return m, nil
}

func WithMember(ctx context.Context, m member.Member) context.Context {
	return context.WithValue(ctx, constants.UserKey, m)
}
