package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/aslanbek/account-service/internal/entity"
)

const (
	UserRegisteredSubject = "user.registered"
	UserUpdatedSubject    = "user.updated"
)

type Publisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

// userEventPayload is the wire form of account events. Password and
// reset-token fields are deliberately absent.
type userEventPayload struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	PhoneNumber string    `json:"phoneNumber"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// asyncErrorHandler logs async NATS errors. sub is nil for
// connection-level errors, so the subject is only attached when a
// subscription is involved.
func asyncErrorHandler(logger *zap.Logger) nats.ErrHandler {
	return func(nc *nats.Conn, sub *nats.Subscription, err error) {
		if sub != nil {
			logger.Error("NATS error", zap.String("subject", sub.Subject), zap.Error(err))
			return
		}
		logger.Error("NATS error", zap.Error(err))
	}
}

func NewPublisher(url string, connectTimeout time.Duration, logger *zap.Logger) (*Publisher, error) {
	opts := []nats.Option{
		nats.Timeout(connectTimeout),
		nats.ErrorHandler(asyncErrorHandler(logger)),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrl()))

	return &Publisher{nc: nc, logger: logger.Named("NATSPublisher")}, nil
}

func (p *Publisher) publish(subject string, user *entity.User) error {
	payload := userEventPayload{
		ID:          user.ID.Hex(),
		FullName:    user.FullName,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		UpdatedAt:   user.UpdatedAt,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal user for NATS publishing",
			zap.Error(err),
			zap.String("user_id", payload.ID),
			zap.String("subject", subject),
		)
		return fmt.Errorf("failed to marshal user for %s: %w", subject, err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish NATS message",
			zap.String("subject", subject),
			zap.Error(err),
			zap.String("user_id", payload.ID),
		)
		return fmt.Errorf("failed to publish NATS message for %s: %w", subject, err)
	}
	p.logger.Info("Published NATS message",
		zap.String("subject", subject),
		zap.String("user_id", payload.ID),
	)
	return nil
}

func (p *Publisher) PublishUserRegistered(ctx context.Context, user *entity.User) error {
	return p.publish(UserRegisteredSubject, user)
}

func (p *Publisher) PublishUserUpdated(ctx context.Context, user *entity.User) error {
	return p.publish(UserUpdatedSubject, user)
}

func (p *Publisher) Close() {
	if p.nc != nil && !p.nc.IsClosed() {
		p.nc.Close()
	}
}
