// Package moderation authorizes, validates and executes moderation actions.
//
// Every entry point runs the same sequence of stages: authorization against
// the guild's configured tiers, validation of the target, an optional notice
// to the target, execution through the Gateway and finally a best-effort
// audit record. Checks never mutate state; a rejected action is returned as a
// denied Outcome rather than an error.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/robalyx/sentinel/internal/authz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// MinClearCount is the smallest accepted clear count.
	MinClearCount = 1
	// MaxClearCount is the largest accepted clear count.
	MaxClearCount = 200
	// DefaultReason is used when no reason is given.
	DefaultReason = "No reason provided"
)

// Request is a ban or kick request.
type Request struct {
	GuildID snowflake.ID
	Actor   Actor
	Target  TargetRef
	Reason  string
}

// UnbanRequest lifts the ban of UserID.
type UnbanRequest struct {
	GuildID snowflake.ID
	Actor   Actor
	UserID  snowflake.ID
	Reason  string
}

// ClearRequest deletes up to Count recent messages of ChannelID, optionally
// only those written by Author. Messages in Exclude are never deleted.
type ClearRequest struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	Actor     Actor
	Count     int
	Author    *TargetRef
	Exclude   []snowflake.ID
}

// RoleRequest grants or revokes RoleID on Target.
type RoleRequest struct {
	GuildID snowflake.ID
	Actor   Actor
	Target  TargetRef
	RoleID  snowflake.ID
}

// Pipeline runs moderation actions.
type Pipeline struct {
	gateway  Gateway
	config   ConfigReader
	resolver *Resolver
	audit    *AuditSink
	tracer   trace.Tracer
	logger   *zap.Logger
	now      func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(gateway Gateway, config ConfigReader, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		gateway:  gateway,
		config:   config,
		resolver: NewResolver(gateway),
		audit:    NewAuditSink(gateway, config, logger),
		tracer:   otel.Tracer("github.com/robalyx/sentinel/internal/moderation"),
		logger:   logger.Named("pipeline"),
		now:      time.Now,
	}
}

// Resolver returns the pipeline's target resolver.
func (p *Pipeline) Resolver() *Resolver {
	return p.resolver
}

// Tier classifies actor against the guild's configuration.
func (p *Pipeline) Tier(guildID snowflake.ID, actor Actor) authz.Tier {
	return authz.Classify(actor.Principal(), p.config.Get(guildID))
}

// Ban bans the target. External users can be banned by id.
func (p *Pipeline) Ban(ctx context.Context, req Request) Outcome {
	return p.punish(ctx, ActionBan, req)
}

// Kick removes the target from the guild. The target must be a member.
func (p *Pipeline) Kick(ctx context.Context, req Request) Outcome {
	return p.punish(ctx, ActionKick, req)
}

// punish runs the ban and kick sequence.
func (p *Pipeline) punish(ctx context.Context, kind ActionKind, req Request) Outcome {
	ctx, span := p.startSpan(ctx, kind, req.GuildID, req.Actor)
	defer span.End()

	if !p.authorize(req.GuildID, req.Actor, authz.ModeratorOrHigher) {
		return p.finish(span, kind, req.GuildID, denied(kind, StageAuthorizing, ErrInsufficientPermission))
	}

	target, err := p.resolver.Resolve(ctx, req.GuildID, req.Target)
	if err != nil {
		return p.finish(span, kind, req.GuildID, rejected(kind, StageValidating, err))
	}

	if kind == ActionKick && target.Kind != TargetInGuild {
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrTargetNotInGuild))
	}

	if err := p.validateTarget(ctx, req.GuildID, req.Actor, target); err != nil {
		return p.finish(span, kind, req.GuildID, rejected(kind, StageValidating, err))
	}

	reason := reasonOrDefault(req.Reason)

	if target.Kind == TargetInGuild {
		notice := fmt.Sprintf("You were %s from **%s**.\nReason: %s", kind.PastTense(), req.Actor.Guild.Name, reason)
		if err := p.gateway.SendDirect(ctx, target.ID(), notice); err != nil {
			p.logger.Debug("Failed to notify target",
				zap.String("action", kind.String()),
				zap.Uint64("user_id", uint64(target.ID())),
				zap.Error(err))
		}
	}

	// The action is not cancelled once it has been sent to the platform
	execCtx := context.WithoutCancel(ctx)
	auditReason := fmt.Sprintf("%s (by %s)", reason, req.Actor.Display())

	if kind == ActionBan {
		err = p.gateway.Ban(execCtx, req.GuildID, target.ID(), auditReason)
	} else {
		err = p.gateway.Kick(execCtx, req.GuildID, target.ID(), auditReason)
	}

	if err != nil {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageExecuting, err))
	}

	record := p.newRecord(kind, req.GuildID, req.Actor, target.User, reason)

	return p.finish(span, kind, req.GuildID, p.emit(execCtx, kind, record))
}

// Unban lifts an active ban.
func (p *Pipeline) Unban(ctx context.Context, req UnbanRequest) Outcome {
	kind := ActionUnban

	ctx, span := p.startSpan(ctx, kind, req.GuildID, req.Actor)
	defer span.End()

	if !p.authorize(req.GuildID, req.Actor, authz.ModeratorOrHigher) {
		return p.finish(span, kind, req.GuildID, denied(kind, StageAuthorizing, ErrInsufficientPermission))
	}

	banned, err := p.gateway.BannedUser(ctx, req.GuildID, req.UserID)
	if errors.Is(err, ErrGatewayNotFound) || (err == nil && banned == nil) {
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrNotBanned))
	}

	if err != nil {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageValidating, err))
	}

	reason := reasonOrDefault(req.Reason)
	execCtx := context.WithoutCancel(ctx)

	err = p.gateway.Unban(execCtx, req.GuildID, req.UserID, fmt.Sprintf("%s (by %s)", reason, req.Actor.Display()))
	if errors.Is(err, ErrGatewayNotFound) {
		err = fmt.Errorf("%w: %w", ErrNotBanned, err)
	}

	if err != nil {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageExecuting, err))
	}

	record := p.newRecord(kind, req.GuildID, req.Actor, *banned, reason)

	return p.finish(span, kind, req.GuildID, p.emit(execCtx, kind, record))
}

// Clear deletes recent messages of a channel.
func (p *Pipeline) Clear(ctx context.Context, req ClearRequest) Outcome {
	kind := ActionClear

	ctx, span := p.startSpan(ctx, kind, req.GuildID, req.Actor)
	defer span.End()

	span.SetAttributes(attribute.Int("clear.requested", req.Count))

	if !p.authorize(req.GuildID, req.Actor, authz.ModeratorOrHigher) {
		return p.finish(span, kind, req.GuildID, denied(kind, StageAuthorizing, ErrInsufficientPermission))
	}

	switch {
	case req.Count < MinClearCount:
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrCountTooLow))
	case req.Count > MaxClearCount:
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrCountTooHigh))
	}

	var author *User

	if req.Author != nil {
		target, err := p.resolver.Resolve(ctx, req.GuildID, *req.Author)
		if err != nil {
			return p.finish(span, kind, req.GuildID, rejected(kind, StageValidating, err))
		}

		author = &target.User
	}

	filter := func(m Message) bool {
		if slices.Contains(req.Exclude, m.ID) {
			return false
		}

		return author == nil || m.AuthorID == author.ID
	}

	execCtx := context.WithoutCancel(ctx)

	// Excluded messages do not use up the scan budget
	deleted, err := p.gateway.PurgeMessages(execCtx, req.ChannelID, req.Count+len(req.Exclude), filter,
		"Clear used by "+req.Actor.Display())
	if err != nil && deleted == 0 {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageExecuting, err))
	}

	record := p.newRecord(kind, req.GuildID, req.Actor, User{}, "")
	record.ChannelID = req.ChannelID
	record.Count = deleted
	record.AuthorFilter = author

	if author != nil {
		record.Target = *author
	}

	if err != nil {
		// Some batches were already removed; the audit trail still gets them
		record.Reason = "Stopped early after a Discord error"
		outcome := aborted(kind, StageExecuting, err)
		outcome.Record = record
		outcome.Audited = p.audit.Emit(execCtx, req.GuildID, record)

		return p.finish(span, kind, req.GuildID, outcome)
	}

	return p.finish(span, kind, req.GuildID, p.emit(execCtx, kind, record))
}

// GrantRole gives RoleID to the target member.
func (p *Pipeline) GrantRole(ctx context.Context, req RoleRequest) Outcome {
	return p.changeRole(ctx, ActionGrantRole, req)
}

// RevokeRole takes RoleID away from the target member.
func (p *Pipeline) RevokeRole(ctx context.Context, req RoleRequest) Outcome {
	return p.changeRole(ctx, ActionRevokeRole, req)
}

func (p *Pipeline) changeRole(ctx context.Context, kind ActionKind, req RoleRequest) Outcome {
	ctx, span := p.startSpan(ctx, kind, req.GuildID, req.Actor)
	defer span.End()

	span.SetAttributes(attribute.String("role.id", req.RoleID.String()))

	if !p.authorize(req.GuildID, req.Actor, authz.AdminOrOwner) {
		return p.finish(span, kind, req.GuildID, denied(kind, StageAuthorizing, ErrInsufficientPermission))
	}

	target, err := p.resolver.Resolve(ctx, req.GuildID, req.Target)
	if err != nil {
		return p.finish(span, kind, req.GuildID, rejected(kind, StageValidating, err))
	}

	if target.Kind != TargetInGuild {
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrTargetNotInGuild))
	}

	role, err := p.gateway.Role(ctx, req.GuildID, req.RoleID)
	if errors.Is(err, ErrGatewayNotFound) {
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrRoleNotFound))
	}

	if err != nil {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageValidating, err))
	}

	if !req.Actor.IsOwner() && role.Position >= req.Actor.Rank {
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrInsufficientRank))
	}

	bot, err := p.gateway.Member(ctx, req.GuildID, p.gateway.SelfID())
	if err != nil {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageValidating, err))
	}

	if role.Position >= bot.Rank {
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrBotRankInsufficient))
	}

	held := slices.Contains(target.Member.RoleIDs, role.ID)

	switch {
	case kind == ActionGrantRole && held:
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrRoleAlreadyAssigned))
	case kind == ActionRevokeRole && !held:
		return p.finish(span, kind, req.GuildID, denied(kind, StageValidating, ErrRoleNotAssigned))
	}

	execCtx := context.WithoutCancel(ctx)
	reason := fmt.Sprintf("Role %s by %s", kind.PastTense(), req.Actor.Display())

	if kind == ActionGrantRole {
		err = p.gateway.AddRole(execCtx, req.GuildID, target.ID(), role.ID, reason)
	} else {
		err = p.gateway.RemoveRole(execCtx, req.GuildID, target.ID(), role.ID, reason)
	}

	if err != nil {
		return p.finish(span, kind, req.GuildID, aborted(kind, StageExecuting, err))
	}

	record := p.newRecord(kind, req.GuildID, req.Actor, target.User, "")
	record.Role = &role

	return p.finish(span, kind, req.GuildID, p.emit(execCtx, kind, record))
}

// authorize checks the actor's tier against minimum.
func (p *Pipeline) authorize(guildID snowflake.ID, actor Actor, minimum authz.Tier) bool {
	return authz.Require(p.Tier(guildID, actor), minimum)
}

// validateTarget applies the self, bot, owner and hierarchy checks. The
// hierarchy checks only apply to guild members.
func (p *Pipeline) validateTarget(ctx context.Context, guildID snowflake.ID, actor Actor, target Target) error {
	switch target.ID() {
	case actor.ID:
		return ErrCannotTargetSelf
	case p.gateway.SelfID():
		return ErrCannotTargetBot
	case actor.Guild.OwnerID:
		return ErrCannotTargetOwner
	}

	if target.Kind != TargetInGuild {
		return nil
	}

	if !actor.IsOwner() && target.Member.Rank >= actor.Rank {
		return ErrInsufficientRank
	}

	bot, err := p.gateway.Member(ctx, guildID, p.gateway.SelfID())
	if err != nil {
		return fmt.Errorf("failed to fetch bot member: %w", err)
	}

	if target.Member.Rank >= bot.Rank {
		return ErrBotRankInsufficient
	}

	return nil
}

// emit sends the audit record and completes the outcome.
func (p *Pipeline) emit(ctx context.Context, kind ActionKind, record *AuditRecord) Outcome {
	return Outcome{
		Action:  kind,
		Status:  StatusExecuted,
		Stage:   StageTerminal,
		Record:  record,
		Audited: p.audit.Emit(ctx, record.GuildID, record),
	}
}

func (p *Pipeline) newRecord(kind ActionKind, guildID snowflake.ID, actor Actor, target User, reason string) *AuditRecord {
	return &AuditRecord{
		ID:        uuid.New().String(),
		Kind:      kind,
		GuildID:   guildID,
		Actor:     actor.User,
		Target:    target,
		Reason:    reason,
		CreatedAt: p.now(),
	}
}

func (p *Pipeline) startSpan(ctx context.Context, kind ActionKind, guildID snowflake.ID, actor Actor) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "moderation."+kind.String(), trace.WithAttributes(
		attribute.String("guild.id", guildID.String()),
		attribute.String("actor.id", actor.ID.String()),
	))
}

// finish records the outcome on the span and in the log.
func (p *Pipeline) finish(span trace.Span, kind ActionKind, guildID snowflake.ID, outcome Outcome) Outcome {
	span.SetAttributes(
		attribute.String("outcome.status", outcome.Status.String()),
		attribute.String("outcome.stage", outcome.Stage.String()),
	)

	fields := []zap.Field{
		zap.String("action", kind.String()),
		zap.Uint64("guild_id", uint64(guildID)),
		zap.String("stage", outcome.Stage.String()),
	}

	switch outcome.Status {
	case StatusExecuted:
		span.SetAttributes(attribute.String("action.id", outcome.Record.ID))
		p.logger.Info("Moderation action executed", append(fields,
			zap.String("action_id", outcome.Record.ID),
			zap.Uint64("actor_id", uint64(outcome.Record.Actor.ID)),
			zap.Uint64("target_id", uint64(outcome.Record.Target.ID)),
			zap.Bool("audited", outcome.Audited))...)
	case StatusDenied:
		p.logger.Debug("Moderation action denied", append(fields,
			zap.String("kind", outcome.Kind().String()),
			zap.Error(outcome.Err))...)
	case StatusAborted:
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
		p.logger.Warn("Moderation action aborted", append(fields,
			zap.String("kind", outcome.Kind().String()),
			zap.Error(outcome.Err))...)
	}

	return outcome
}

func denied(kind ActionKind, stage Stage, err error) Outcome {
	return Outcome{Action: kind, Status: StatusDenied, Stage: stage, Err: err}
}

func aborted(kind ActionKind, stage Stage, err error) Outcome {
	return Outcome{Action: kind, Status: StatusAborted, Stage: stage, Err: err}
}

// rejected classifies a validation error: platform failures abort, check
// failures deny.
func rejected(kind ActionKind, stage Stage, err error) Outcome {
	switch KindOf(err) {
	case KindGatewayForbidden, KindGatewayTransient:
		return aborted(kind, stage, err)
	default:
		return denied(kind, stage, err)
	}
}

func reasonOrDefault(reason string) string {
	if reason == "" {
		return DefaultReason
	}

	return reason
}
