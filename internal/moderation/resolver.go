package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/sync/errgroup"
)

// Resolver turns command references into targets and actors.
type Resolver struct {
	gateway Gateway
}

// NewResolver creates a Resolver backed by gateway.
func NewResolver(gateway Gateway) *Resolver {
	return &Resolver{gateway: gateway}
}

// Resolve returns an InGuild target when the user is a member of the guild
// and an ExternalUser target when the user exists but is not a member.
func (r *Resolver) Resolve(ctx context.Context, guildID snowflake.ID, ref TargetRef) (Target, error) {
	if ref.Member != nil {
		return InGuild(*ref.Member), nil
	}

	member, err := r.gateway.Member(ctx, guildID, ref.UserID)
	if err == nil {
		return InGuild(member), nil
	}

	if !errors.Is(err, ErrGatewayNotFound) {
		return Target{}, fmt.Errorf("failed to look up member %d: %w", ref.UserID, err)
	}

	user, err := r.gateway.User(ctx, ref.UserID)
	if errors.Is(err, ErrGatewayNotFound) {
		return Target{}, fmt.Errorf("%w: %d", ErrTargetNotFound, ref.UserID)
	}

	if err != nil {
		return Target{}, fmt.Errorf("failed to look up user %d: %w", ref.UserID, err)
	}

	return ExternalUser(user), nil
}

// ResolveActor builds the actor context of userID. The guild and the member
// are fetched concurrently.
func (r *Resolver) ResolveActor(ctx context.Context, guildID, userID snowflake.ID) (Actor, error) {
	var (
		guild  Guild
		member Member
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		guild, err = r.gateway.Guild(ctx, guildID)
		if err != nil {
			return fmt.Errorf("failed to fetch guild %d: %w", guildID, err)
		}

		return nil
	})

	g.Go(func() error {
		var err error

		member, err = r.gateway.Member(ctx, guildID, userID)
		if err != nil {
			return fmt.Errorf("failed to fetch member %d: %w", userID, err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return Actor{}, err
	}

	return Actor{Member: member, Guild: guild}, nil
}
