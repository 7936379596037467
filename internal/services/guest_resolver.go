package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"pilgrimage/internal/domain"
	"pilgrimage/internal/domain/models"
	"pilgrimage/internal/utils"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

// GuestResolver maps a contact email to a durable user id, creating a guest
// pilgrim the first time the email is seen.
type GuestResolver struct {
	Users   UserStore
	Timeout time.Duration // bound on one shared lookup-or-create

	group singleflight.Group
}

func NewGuestResolver(users UserStore) *GuestResolver {
	return &GuestResolver{Users: users, Timeout: 10 * time.Second}
}

// ResolveOrCreateGuest is idempotent for one email: concurrent callers in this
// process share one lookup, and callers in other processes that lose the
// unique-email race read back the winner's row.
func (g *GuestResolver) ResolveOrCreateGuest(ctx context.Context, email string) (int64, error) {
	email = utils.NormalizeEmail(email)
	if !utils.LooksLikeEmail(email) {
		return 0, domain.ValidationError{Field: "contact_email", Msg: "a valid contact email is required for guest bookings"}
	}
	// The call is shared by every waiter, so one caller leaving must not end it.
	v, err, shared := g.group.Do(email, func() (any, error) {
		timeout := g.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shareCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return g.resolve(shareCtx, email)
	})
	if err != nil {
		return 0, err
	}
	id := v.(int64)
	if shared {
		utils.LogEventf(ctx, "guest", "resolve_shared", "user_id=%d", id)
	}
	return id, nil
}

func (g *GuestResolver) resolve(ctx context.Context, email string) (int64, error) {
	u, err := g.Users.GetUserByEmail(ctx, email)
	if err == nil {
		return u.ID, nil
	}
	if !domain.IsNotFound(err) {
		return 0, domain.UnavailableError{Op: "lookup guest", Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return 0, domain.InternalError{Msg: "hash guest secret", Err: err}
	}
	created, err := g.Users.CreateUser(ctx, models.User{
		Name:         guestName(email),
		Email:        email,
		PasswordHash: string(hash),
		Role:         domain.RolePilgrim,
		Status:       models.UserStatusGuest,
	})
	if err == nil {
		utils.LogEventf(ctx, "guest", "created", "user_id=%d", created.ID)
		return created.ID, nil
	}
	if !errors.Is(err, domain.ErrDuplicate) {
		return 0, domain.UnavailableError{Op: "create guest", Err: err}
	}

	// Another process inserted the same email first.
	u, err = g.Users.GetUserByEmail(ctx, email)
	if err != nil {
		return 0, domain.UnavailableError{Op: "reload guest", Err: err}
	}
	utils.LogEventf(ctx, "guest", "race_resolved", "user_id=%d", u.ID)
	return u.ID, nil
}

func guestName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
