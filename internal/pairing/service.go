// Package pairing links a specialist's web account to a Telegram account
// through a short-lived single-use token.
package pairing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/nabd-ai/vertex-backend/internal/specialists"
	"github.com/nabd-ai/vertex-backend/pkg/db"
	"github.com/nabd-ai/vertex-backend/pkg/db/models"
	pkgerrors "github.com/nabd-ai/vertex-backend/pkg/errors"
	"github.com/nabd-ai/vertex-backend/pkg/security"
)

const tokenBytes = 24

var (
	ErrTokenInvalid     = pkgerrors.New(pkgerrors.CodeNotFound, "pairing token is invalid or expired")
	ErrTelegramInUse    = pkgerrors.New(pkgerrors.CodeConflict, "telegram account is linked to another specialist")
	ErrSpecialistLinked = pkgerrors.New(pkgerrors.CodeConflict, "specialist is linked to a different telegram account")
)

// Store is the redis surface pairing needs.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	PairingKey(token string) string
	PairingOwnerKey(specialistID string) string
}

// Token is what the web UI shows the specialist.
type Token struct {
	Token     string    `json:"token"`
	Command   string    `json:"command"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LinkInput is the Telegram identity presenting a token.
type LinkInput struct {
	Token          string
	TelegramUserID int64
	Username       string
	ChatID         int64
}

type Service struct {
	store Store
	specs specialists.Repository
	ttl   time.Duration
	now   func() time.Time
}

func NewService(store Store, specs specialists.Repository, ttl time.Duration) (*Service, error) {
	if store == nil {
		return nil, errors.New("pairing store required")
	}
	if specs == nil {
		return nil, errors.New("specialist repository required")
	}
	if ttl <= 0 {
		return nil, errors.New("pairing ttl must be positive")
	}
	return &Service{store: store, specs: specs, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}, nil
}

// IssueToken creates a fresh token for the specialist owned by userID and
// invalidates the previous one.
func (s *Service) IssueToken(ctx context.Context, userID uuid.UUID) (*Token, error) {
	spec, err := s.specs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, specialists.NotFoundOr(err, "load specialist")
	}

	ownerKey := s.store.PairingOwnerKey(spec.ID.String())
	previous, err := s.store.Get(ctx, ownerKey)
	switch {
	case err == nil && previous != "":
		if err := s.store.Del(ctx, s.store.PairingKey(previous)); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke previous pairing token")
		}
	case err != nil && !errors.Is(err, goredis.Nil):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read pairing token")
	}

	token, err := security.RandomURLToken(tokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pairing token")
	}
	if err := s.store.Set(ctx, s.store.PairingKey(token), spec.ID.String(), s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store pairing token")
	}
	if err := s.store.Set(ctx, ownerKey, token, s.ttl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store pairing owner")
	}
	return &Token{Token: token, Command: "/link " + token, ExpiresAt: s.now().Add(s.ttl)}, nil
}

// Link consumes the token and attaches the Telegram identity. Relinking the
// same Telegram account to the same specialist succeeds without changes.
func (s *Service) Link(ctx context.Context, input LinkInput) (*models.Specialist, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, ErrTokenInvalid
	}
	raw, err := s.store.GetDel(ctx, s.store.PairingKey(token))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrTokenInvalid
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume pairing token")
	}
	specID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	_ = s.store.Del(ctx, s.store.PairingOwnerKey(specID.String()))

	holder, err := s.specs.FindByTelegramUserID(ctx, input.TelegramUserID)
	switch {
	case err == nil && holder.ID != specID:
		return nil, ErrTelegramInUse
	case err == nil:
		return holder, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup telegram link")
	}

	spec, err := s.specs.FindByID(ctx, specID)
	if err != nil {
		return nil, specialists.NotFoundOr(err, "load specialist")
	}
	if spec.TelegramLinked() {
		return nil, ErrSpecialistLinked
	}

	var username *string
	if name := strings.TrimPrefix(strings.TrimSpace(input.Username), "@"); name != "" {
		username = &name
	}
	ok, err := s.specs.LinkTelegram(ctx, specID, specialists.TelegramLink{
		UserID:   input.TelegramUserID,
		Username: username,
		ChatID:   input.ChatID,
		LinkedAt: s.now(),
	})
	if err != nil {
		if db.IsUniqueViolation(err, "telegram_user_id") {
			return nil, ErrTelegramInUse
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link telegram")
	}
	if !ok {
		return nil, ErrSpecialistLinked
	}
	return s.specs.FindByID(ctx, specID)
}

// Unlink detaches the Telegram account of the specialist owned by userID.
func (s *Service) Unlink(ctx context.Context, userID uuid.UUID) error {
	spec, err := s.specs.FindByUserID(ctx, userID)
	if err != nil {
		return specialists.NotFoundOr(err, "load specialist")
	}
	if !spec.TelegramLinked() {
		return nil
	}
	if err := s.specs.UnlinkTelegram(ctx, spec.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unlink telegram")
	}
	return nil
}
