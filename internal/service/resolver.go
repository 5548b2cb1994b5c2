package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"Playdatewebserver/internal/domain"
)

// MaxInviteCandidates bounds how many targets one activity resolves.
const MaxInviteCandidates = 100

type PendingInvitationsStore interface {
	// CreatePendingInvitation returns domain.ErrPendingInvitationExists when
	// the activity already has a placeholder for the key.
	CreatePendingInvitation(ctx context.Context, p domain.PendingActivityInvitation) (domain.PendingActivityInvitation, error)
	// ListPendingForHost returns placeholders with the given key whose
	// activity is hosted by hostChildID.
	ListPendingForHost(ctx context.Context, key, hostChildID string) ([]domain.PendingActivityInvitation, error)
	ListPendingForActivity(ctx context.Context, activityID string) ([]domain.PendingActivityInvitation, error)
	DeletePendingInvitation(ctx context.Context, id string) error
}

// InvitationResolver decides, per target, whether an activity invitation is
// sent now or parked until the host and the target are connected.
type InvitationResolver struct {
	Users       UserLookup
	Children    ChildLookup
	Connections ConnectionGraph
	Invitations InvitationWriter
	Pending     PendingInvitationsStore
	Failures    FailureRecorder
	Logger      *zap.Logger
	Now         func() time.Time
}

type resolveRun struct {
	r         *InvitationResolver
	activity  domain.Activity
	inviterID string
	message   string
	log       *zap.Logger

	connected      []domain.Child
	connectedReady bool
}

// Resolve fans an activity out to explicit targets and, with autoNotify, to
// every child connected to the host. Each target is handled independently;
// a failure is recorded and the batch carries on.
func (r *InvitationResolver) Resolve(ctx context.Context, activity domain.Activity, inviterID string, targets []domain.InviteTarget, autoNotify bool, message string) domain.ResolutionSummary {
	sum := domain.ResolutionSummary{Results: []domain.InvitationResult{}}
	run := &resolveRun{
		r:         r,
		activity:  activity,
		inviterID: inviterID,
		message:   message,
		log:       logger(r.Logger).With(zap.String("activity_id", activity.ID)),
	}

	candidates := make([]domain.InviteTarget, 0, len(targets))
	seen := make(map[domain.InviteTarget]bool, len(targets))
	add := func(t domain.InviteTarget) {
		if seen[t] {
			return
		}
		seen[t] = true
		candidates = append(candidates, t)
	}
	for _, t := range targets {
		add(t)
	}
	if autoNotify {
		kids, err := run.connectedChildren(ctx)
		if err != nil {
			run.log.Warn("list connected children", zap.Error(err))
		}
		for _, k := range kids {
			add(domain.ConnectedTarget(k.ID))
		}
	}

	if len(candidates) > MaxInviteCandidates {
		run.log.Warn("invitation candidates truncated",
			zap.Int("candidates", len(candidates)),
			zap.Int("limit", MaxInviteCandidates),
		)
		for _, t := range candidates[MaxInviteCandidates:] {
			sum.Add(domain.InvitationResult{
				ActivityID: activity.ID,
				Target:     t.String(),
				Outcome:    domain.OutcomeFailed,
				Error:      "candidate limit exceeded",
			})
		}
		candidates = candidates[:MaxInviteCandidates]
	}

	for _, t := range candidates {
		var res domain.InvitationResult
		switch t.Kind {
		case domain.TargetConnected:
			res = run.connectedTarget(ctx, t)
		case domain.TargetProspective:
			res = run.prospectiveTarget(ctx, t)
		default:
			res = run.result(t, domain.OutcomeFailed, "", errors.New("unknown target kind"))
		}
		sum.Add(res)
	}
	return sum
}

func (run *resolveRun) connectedChildren(ctx context.Context) ([]domain.Child, error) {
	if run.connectedReady {
		return run.connected, nil
	}
	kids, err := run.r.Connections.ListConnectedChildren(ctx, run.activity.ChildID)
	if err != nil {
		return nil, err
	}
	run.connected, run.connectedReady = kids, true
	return kids, nil
}

func (run *resolveRun) connectedTarget(ctx context.Context, t domain.InviteTarget) domain.InvitationResult {
	child, err := run.r.Children.GetChild(ctx, t.ChildID)
	if err != nil {
		return run.fail(ctx, t, domain.FailureInvitationCreate, err)
	}
	if child.ParentID == run.inviterID {
		return run.result(t, domain.OutcomeFailed, "", errors.New("cannot invite your own child"))
	}

	_, err = run.r.Connections.FindActiveConnection(ctx, run.activity.ChildID, child.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return run.result(t, domain.OutcomeNotConnected, "", nil)
	}
	if err != nil {
		return run.fail(ctx, t, domain.FailureInvitationCreate, err)
	}
	return run.invite(ctx, t, child)
}

func (run *resolveRun) prospectiveTarget(ctx context.Context, t domain.InviteTarget) domain.InvitationResult {
	if t.ParentID == run.inviterID {
		return run.result(t, domain.OutcomeFailed, "", errors.New("cannot invite yourself"))
	}
	parent, err := run.r.Users.GetUserByID(ctx, t.ParentID)
	if err != nil {
		return run.fail(ctx, t, domain.FailurePendingCreate, err)
	}
	if !parent.IsActive {
		return run.result(t, domain.OutcomeFailed, "", domain.ErrNotFound)
	}

	// Already connected to one of that parent's children: no need to wait.
	kids, err := run.connectedChildren(ctx)
	if err != nil {
		return run.fail(ctx, t, domain.FailurePendingCreate, err)
	}
	for _, k := range kids {
		if k.ParentID == parent.ID {
			return run.invite(ctx, t, k)
		}
	}

	p, err := run.r.Pending.CreatePendingInvitation(ctx, domain.PendingActivityInvitation{
		ActivityID:           run.activity.ID,
		InviterParentID:      run.inviterID,
		PendingConnectionKey: t.PendingKey(),
		Message:              run.message,
		CreatedAt:            now(run.r.Now),
	})
	if errors.Is(err, domain.ErrPendingInvitationExists) {
		return run.result(t, domain.OutcomeDuplicate, "", nil)
	}
	if err != nil {
		return run.fail(ctx, t, domain.FailurePendingCreate, err)
	}
	run.log.Debug("invitation deferred", zap.String("key", p.PendingConnectionKey))
	return run.result(t, domain.OutcomeDeferred, "", nil)
}

func (run *resolveRun) invite(ctx context.Context, t domain.InviteTarget, child domain.Child) domain.InvitationResult {
	ts := now(run.r.Now)
	inv, err := run.r.Invitations.CreateInvitation(ctx, domain.ActivityInvitation{
		ActivityID:      run.activity.ID,
		InviterParentID: run.inviterID,
		InvitedParentID: child.ParentID,
		ChildID:         child.ID,
		Status:          domain.InvitationPending,
		Message:         run.message,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	})
	if errors.Is(err, domain.ErrInvitationExists) {
		return run.result(t, domain.OutcomeDuplicate, "", nil)
	}
	if err != nil {
		return run.fail(ctx, t, domain.FailureInvitationCreate, err)
	}
	return run.result(t, domain.OutcomeInvited, inv.ID, nil)
}

func (run *resolveRun) fail(ctx context.Context, t domain.InviteTarget, kind domain.FailureKind, err error) domain.InvitationResult {
	run.log.Warn("invitation target failed", zap.String("target", t.String()), zap.Error(err))
	if !isExpected(err) {
		recordFailure(ctx, run.r.Failures, run.log, domain.SideEffectFailure{
			Kind:       kind,
			ActivityID: run.activity.ID,
			Reference:  t.String(),
			Error:      err.Error(),
			CreatedAt:  now(run.r.Now),
		})
	}
	return run.result(t, domain.OutcomeFailed, "", err)
}

func (run *resolveRun) result(t domain.InviteTarget, outcome domain.InvitationOutcome, invitationID string, err error) domain.InvitationResult {
	res := domain.InvitationResult{
		ActivityID:   run.activity.ID,
		Target:       t.String(),
		Outcome:      outcome,
		InvitationID: invitationID,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}
