package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

// Router dispatches named RPC calls to the lifecycle use cases.
type Router struct {
	engine        *LifecycleEngine
	approvals     *ApprovalLedger
	subscriptions *SubscriptionRegistry
	handlers      map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, actor domain.ActorId, payload []byte) (RPCResult, error)

// NewRouter creates a new Router.
func NewRouter(engine *LifecycleEngine, approvals *ApprovalLedger, subscriptions *SubscriptionRegistry) *Router {
	r := &Router{engine: engine, approvals: approvals, subscriptions: subscriptions}
	r.handlers = map[string]handlerFunc{
		"claimProblem":    problemCall(engine.ClaimProblem),
		"unclaimProblem":  problemCall(engine.UnclaimProblem),
		"markAsResolved":  problemCall(engine.MarkAsResolved),
		"markAsUnSolved":  problemCall(engine.MarkAsUnSolved),
		"removeClaimer":   problemCall(engine.RemoveClaimer),
		"updateStatus":    problemCall(engine.UpdateStatus),
		"reopenProblem":   problemCall(engine.ReopenProblem),
		"editProblem":     problemCall(engine.EditProblem),
		"deleteProblem":   problemCall(engine.DeleteProblem),
		"addProblem":      problemCall(engine.AddProblem),
		"acceptSolution":  problemCall(engine.AcceptSolution),
		"getProblem":      r.getProblem,
		"watchProblem":    r.watchProblem,
		"unwatchProblem":  r.unwatchProblem,
		"problemApproval": r.problemApproval,
	}
	return r
}

// Methods lists the method names the router accepts.
func (r *Router) Methods() []string {
	methods := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	return methods
}

// Call runs one RPC. Every failure is reported inside the result.
func (r *Router) Call(ctx context.Context, method string, actor domain.ActorId, payload []byte) RPCResult {
	handler, ok := r.handlers[method]
	if !ok {
		return ErrorResult(method, actor, domain.NewInvalidArgument("unknown method "+method))
	}

	result, err := handler(ctx, actor, payload)
	if err != nil {
		return ErrorResult(method, actor, err)
	}
	result.Status = "success"
	result.Method = method
	result.Actor = actor.String()
	return result
}

func problemCall[R validator](fn func(context.Context, domain.ActorId, R) (domain.ProblemId, error)) handlerFunc {
	return func(ctx context.Context, actor domain.ActorId, payload []byte) (RPCResult, error) {
		var req R
		if err := decodePayload(payload, &req); err != nil {
			return RPCResult{}, err
		}
		id, err := fn(ctx, actor, req)
		if err != nil {
			return RPCResult{}, err
		}
		return RPCResult{ProblemID: id.String()}, nil
	}
}

func (r *Router) getProblem(ctx context.Context, _ domain.ActorId, payload []byte) (RPCResult, error) {
	var req GetProblemRequest
	if err := decodePayload(payload, &req); err != nil {
		return RPCResult{}, err
	}
	problem, err := r.engine.GetProblem(ctx, req)
	if err != nil {
		return RPCResult{}, err
	}
	return RPCResult{ProblemID: problem.ID.String(), Problem: ProblemToDTO(problem)}, nil
}

func (r *Router) watchProblem(ctx context.Context, actor domain.ActorId, payload []byte) (RPCResult, error) {
	var req MembershipRequest
	if err := decodePayload(payload, &req); err != nil {
		return RPCResult{}, err
	}
	if err := r.subscriptions.Watch(ctx, actor, req); err != nil {
		return RPCResult{}, err
	}
	return RPCResult{ProblemID: req.ID, Member: domain.Ptr(true)}, nil
}

func (r *Router) unwatchProblem(ctx context.Context, actor domain.ActorId, payload []byte) (RPCResult, error) {
	var req MembershipRequest
	if err := decodePayload(payload, &req); err != nil {
		return RPCResult{}, err
	}
	if err := r.subscriptions.Unwatch(ctx, actor, req); err != nil {
		return RPCResult{}, err
	}
	return RPCResult{ProblemID: req.ID, Member: domain.Ptr(false)}, nil
}

func (r *Router) problemApproval(ctx context.Context, actor domain.ActorId, payload []byte) (RPCResult, error) {
	var req MembershipRequest
	if err := decodePayload(payload, &req); err != nil {
		return RPCResult{}, err
	}
	approved, err := r.approvals.Toggle(ctx, actor, req)
	if err != nil {
		return RPCResult{}, err
	}
	return RPCResult{ProblemID: req.ID, Member: domain.Ptr(approved)}, nil
}

// decodePayload rejects unknown fields and trailing data.
func decodePayload(payload []byte, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewInvalidArgument("malformed payload: " + err.Error())
	}
	if dec.More() {
		return domain.NewInvalidArgument("malformed payload: trailing data")
	}
	return nil
}

// ErrorResult reports err as a failed call. ProblemErrors keep their code;
// anything else is UNEXPECTED.
func ErrorResult(method string, actor domain.ActorId, err error) RPCResult {
	code := domain.ErrCodeUnexpected
	message := err.Error()

	var problemErr *domain.ProblemError
	if errors.As(err, &problemErr) {
		code = problemErr.Code
		message = problemErr.Message
	}

	return RPCResult{
		Status: "error",
		Method: method,
		Actor:  actor.String(),
		Error: &ErrorDTO{
			Code:    string(code),
			Message: message,
		},
	}
}
