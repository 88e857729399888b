package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/ccheney/problem-lifecycle/internal/domain"
)

const problemColumns = `
	id, summary, description, solution, status, created_by, created_at, updated_at,
	claimed_by, claimed, claimed_fullname, claimed_date_time, estimate,
	resolved, resolved_by, resolve_steps, has_accepted_solution,
	previous_solutions, fyi_problem, dependencies, inv_dependencies`

// archiveExpr appends the stored resolution to previous_solutions when one
// exists. SET expressions see the row as it was before the UPDATE, so this
// snapshots the old values even though the same statement clears them.
const archiveExpr = `CASE WHEN resolve_steps != '' OR resolved_by != '' OR resolved = 1
	THEN json_insert(previous_solutions, '$[#]', json_object(
		'resolve_steps', resolve_steps,
		'resolved_by', resolved_by,
		'resolved', json(CASE WHEN resolved = 1 THEN 'true' ELSE 'false' END),
		'has_accepted_solution', json(CASE WHEN has_accepted_solution = 1 THEN 'true' ELSE 'false' END),
		'claimed_by', claimed_by,
		'claimed_fullname', claimed_fullname,
		'reopened_by', ?,
		'reason', ?,
		'archived_at', ?))
	ELSE previous_solutions END`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SQLiteProblemStore implements ProblemStorePort using SQLite. Every
// mutation is a single UPDATE or DELETE whose WHERE clause carries the
// precondition, so the check and the write are one atomic step.
type SQLiteProblemStore struct {
	conn *SQLiteDB
}

// NewSQLiteProblemStore creates a new SQLiteProblemStore.
func NewSQLiteProblemStore(conn *SQLiteDB) *SQLiteProblemStore {
	return &SQLiteProblemStore{conn: conn}
}

// Get returns the stored problem.
func (r *SQLiteProblemStore) Get(ctx context.Context, id domain.ProblemId) (*domain.Problem, error) {
	var problem *domain.Problem
	err := r.conn.withRetry(ctx, "fetch problem", func() error {
		var err error
		problem, err = fetchProblem(ctx, r.conn.db, id)
		return err
	})
	return problem, err
}

// Insert stores a new problem with its membership sets.
func (r *SQLiteProblemStore) Insert(ctx context.Context, problem *domain.Problem) error {
	previous, err := json.Marshal(nonNilSnapshots(problem.PreviousSolutions))
	if err != nil {
		return domain.NewStorageError(domain.ErrCodeUnexpected, "failed to encode previous solutions: "+err.Error())
	}
	deps, _ := json.Marshal(problem.Dependencies.Strings())
	invDeps, _ := json.Marshal(problem.InvDependencies.Strings())

	return r.conn.inTx(ctx, "insert problem", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO problems (`+problemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			problem.ID.String(),
			problem.Summary,
			problem.Description,
			problem.Solution,
			string(problem.Status),
			problem.CreatedBy.String(),
			formatTime(problem.CreatedAt),
			formatTime(problem.UpdatedAt),
			problem.ClaimedBy.String(),
			boolToInt(problem.IsClaimed()),
			problem.ClaimedFullname,
			formatTime(problem.ClaimedDateTime),
			problem.Estimate,
			boolToInt(problem.Resolved),
			problem.ResolvedBy.String(),
			problem.ResolveSteps,
			boolToInt(problem.HasAcceptedSolution),
			string(previous),
			boolToInt(problem.FYIProblem),
			string(deps),
			string(invDeps),
		)
		if err != nil {
			return err
		}

		now := formatTime(time.Now())
		for _, set := range []domain.MemberSet{domain.MemberSetApprovals, domain.MemberSetSubscribers} {
			for _, actor := range problem.Members(set) {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR IGNORE INTO problem_members (problem_id, member_set, actor_id, added_at) VALUES (?, ?, ?, ?)`,
					problem.ID.String(), string(set), actor.String(), now,
				); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ConditionalUpdate applies delta iff pre holds, in one UPDATE statement.
func (r *SQLiteProblemStore) ConditionalUpdate(
	ctx context.Context,
	id domain.ProblemId,
	pre domain.Precondition,
	delta domain.Delta,
) (*domain.Problem, bool, error) {
	var problem *domain.Problem
	var applied bool

	err := r.conn.inTx(ctx, "update problem", func(tx *sql.Tx) error {
		setClause, setArgs := r.buildSetClause(delta, time.Now())
		whereClause, whereArgs := r.buildWhereClause(pre)

		args := append(setArgs, id.String())
		args = append(args, whereArgs...)

		result, err := tx.ExecContext(ctx, "UPDATE problems SET "+setClause+" WHERE id = ?"+whereClause, args...)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}

		// Fetching inside the transaction also tells a failed precondition
		// apart from a missing row.
		problem, err = fetchProblem(ctx, tx, id)
		if err != nil {
			return err
		}
		applied = rowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return problem, applied, nil
}

// ConditionalDelete removes the problem and its memberships iff pre holds.
func (r *SQLiteProblemStore) ConditionalDelete(ctx context.Context, id domain.ProblemId, pre domain.Precondition) (bool, error) {
	var deleted bool

	err := r.conn.inTx(ctx, "delete problem", func(tx *sql.Tx) error {
		if err := requireProblem(ctx, tx, id); err != nil {
			return err
		}

		whereClause, whereArgs := r.buildWhereClause(pre)
		result, err := tx.ExecContext(ctx, "DELETE FROM problems WHERE id = ?"+whereClause,
			append([]interface{}{id.String()}, whereArgs...)...)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			deleted = false
			return nil
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM problem_members WHERE problem_id = ?`, id.String()); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// ToggleMember flips actor's membership inside one immediate transaction.
func (r *SQLiteProblemStore) ToggleMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	if !set.IsValid() {
		return false, domain.NewInvalidArgument("unknown member set " + string(set))
	}

	var present bool
	err := r.conn.inTx(ctx, "toggle "+string(set), func(tx *sql.Tx) error {
		if err := requireProblem(ctx, tx, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM problem_members WHERE problem_id = ? AND member_set = ? AND actor_id = ?`,
			id.String(), string(set), actor.String())
		if err != nil {
			return err
		}
		removed, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if removed > 0 {
			present = false
			return r.touch(ctx, tx, id)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO problem_members (problem_id, member_set, actor_id, added_at) VALUES (?, ?, ?, ?)`,
			id.String(), string(set), actor.String(), formatTime(time.Now())); err != nil {
			return err
		}
		present = true
		return r.touch(ctx, tx, id)
	})
	return present, err
}

// AddMember adds actor to set. It reports whether the set changed.
func (r *SQLiteProblemStore) AddMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	return r.changeMember(ctx, id, set, actor, "add to "+string(set),
		`INSERT OR IGNORE INTO problem_members (problem_id, member_set, actor_id, added_at) VALUES (?, ?, ?, ?)`,
		id.String(), string(set), actor.String(), formatTime(time.Now()))
}

// RemoveMember removes actor from set. It reports whether the set changed.
func (r *SQLiteProblemStore) RemoveMember(ctx context.Context, id domain.ProblemId, set domain.MemberSet, actor domain.ActorId) (bool, error) {
	return r.changeMember(ctx, id, set, actor, "remove from "+string(set),
		`DELETE FROM problem_members WHERE problem_id = ? AND member_set = ? AND actor_id = ?`,
		id.String(), string(set), actor.String())
}

func (r *SQLiteProblemStore) changeMember(
	ctx context.Context,
	id domain.ProblemId,
	set domain.MemberSet,
	actor domain.ActorId,
	action string,
	query string,
	args ...interface{},
) (bool, error) {
	if !set.IsValid() {
		return false, domain.NewInvalidArgument("unknown member set " + string(set))
	}

	var changed bool
	err := r.conn.inTx(ctx, action, func(tx *sql.Tx) error {
		if err := requireProblem(ctx, tx, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		changed = rowsAffected > 0
		if !changed {
			return nil
		}
		return r.touch(ctx, tx, id)
	})
	return changed, err
}

func (r *SQLiteProblemStore) touch(ctx context.Context, tx *sql.Tx, id domain.ProblemId) error {
	_, err := tx.ExecContext(ctx, `UPDATE problems SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), id.String())
	return err
}

// buildSetClause turns a delta into assignments. claimed is always derived
// from claimed_by.
func (r *SQLiteProblemStore) buildSetClause(delta domain.Delta, now time.Time) (string, []interface{}) {
	var assignments []string
	var args []interface{}

	set := func(column string, value interface{}) {
		assignments = append(assignments, column+" = ?")
		args = append(args, value)
	}

	if delta.Archive != nil {
		assignments = append(assignments, "previous_solutions = "+archiveExpr)
		args = append(args, delta.Archive.ReopenedBy.String(), delta.Archive.Reason, delta.Archive.At.UTC().Format(time.RFC3339Nano))
	}
	if delta.Summary != nil {
		set("summary", *delta.Summary)
	}
	if delta.Description != nil {
		set("description", *delta.Description)
	}
	if delta.Solution != nil {
		set("solution", *delta.Solution)
	}
	if delta.Status != nil {
		set("status", string(*delta.Status))
	}
	if delta.CreatedBy != nil {
		set("created_by", delta.CreatedBy.String())
	}
	if delta.ClaimedBy != nil {
		set("claimed_by", delta.ClaimedBy.String())
		set("claimed", boolToInt(!delta.ClaimedBy.IsEmpty()))
	}
	if delta.ClaimedFullname != nil {
		set("claimed_fullname", *delta.ClaimedFullname)
	}
	if delta.ClaimedDateTime != nil {
		set("claimed_date_time", formatTime(*delta.ClaimedDateTime))
	}
	if delta.Estimate != nil {
		set("estimate", *delta.Estimate)
	}
	if delta.Resolved != nil {
		set("resolved", boolToInt(*delta.Resolved))
	}
	if delta.ResolvedBy != nil {
		set("resolved_by", delta.ResolvedBy.String())
	}
	if delta.ResolveSteps != nil {
		set("resolve_steps", *delta.ResolveSteps)
	}
	if delta.HasAcceptedSolution != nil {
		set("has_accepted_solution", boolToInt(*delta.HasAcceptedSolution))
	}
	set("updated_at", formatTime(now))

	return strings.Join(assignments, ", "), args
}

func (r *SQLiteProblemStore) buildWhereClause(pre domain.Precondition) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if pre.Claimed != nil {
		conditions = append(conditions, "AND claimed = ?")
		args = append(args, boolToInt(*pre.Claimed))
	}
	if pre.ClaimedBy != nil {
		conditions = append(conditions, "AND claimed_by = ?")
		args = append(args, pre.ClaimedBy.String())
	}
	if pre.CreatedBy != nil {
		conditions = append(conditions, "AND created_by = ?")
		args = append(args, pre.CreatedBy.String())
	}
	if pre.Status != nil {
		conditions = append(conditions, "AND status = ?")
		args = append(args, string(*pre.Status))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " " + strings.Join(conditions, " "), args
}

func requireProblem(ctx context.Context, q querier, id domain.ProblemId) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM problems WHERE id = ?`, id.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return domain.NewNotFound(id)
	}
	return err
}

func fetchProblem(ctx context.Context, q querier, id domain.ProblemId) (*domain.Problem, error) {
	var p domain.Problem
	var status, createdBy, claimedBy, resolvedBy string
	var createdAt, updatedAt, claimedDateTime string
	var claimed, resolved, accepted, fyi int
	var previous, deps, invDeps string

	err := q.QueryRowContext(ctx, `SELECT `+problemColumns+` FROM problems WHERE id = ?`, id.String()).Scan(
		&p.ID,
		&p.Summary,
		&p.Description,
		&p.Solution,
		&status,
		&createdBy,
		&createdAt,
		&updatedAt,
		&claimedBy,
		&claimed,
		&p.ClaimedFullname,
		&claimedDateTime,
		&p.Estimate,
		&resolved,
		&resolvedBy,
		&p.ResolveSteps,
		&accepted,
		&previous,
		&fyi,
		&deps,
		&invDeps,
	)
	if err == sql.ErrNoRows {
		return nil, domain.NewNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	p.Status = domain.ProblemStatus(status)
	p.CreatedBy = domain.ActorId(createdBy)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.ClaimedBy = domain.ActorId(claimedBy)
	p.Claimed = claimed == 1
	p.ClaimedDateTime = parseTime(claimedDateTime)
	p.Resolved = resolved == 1
	p.ResolvedBy = domain.ActorId(resolvedBy)
	p.HasAcceptedSolution = accepted == 1
	p.FYIProblem = fyi == 1

	if err := json.Unmarshal([]byte(previous), &p.PreviousSolutions); err != nil {
		return nil, domain.NewStorageError(domain.ErrCodeStorage, "corrupt previous_solutions: "+err.Error())
	}
	var depIds, invDepIds []string
	if err := json.Unmarshal([]byte(deps), &depIds); err != nil {
		return nil, domain.NewStorageError(domain.ErrCodeStorage, "corrupt dependencies: "+err.Error())
	}
	if err := json.Unmarshal([]byte(invDeps), &invDepIds); err != nil {
		return nil, domain.NewStorageError(domain.ErrCodeStorage, "corrupt inv_dependencies: "+err.Error())
	}
	p.Dependencies = domain.NewProblemIdSet(depIds...)
	p.InvDependencies = domain.NewProblemIdSet(invDepIds...)

	if p.Approvals, err = fetchMembers(ctx, q, id, domain.MemberSetApprovals); err != nil {
		return nil, err
	}
	if p.Subscribers, err = fetchMembers(ctx, q, id, domain.MemberSetSubscribers); err != nil {
		return nil, err
	}
	return &p, nil
}

func fetchMembers(ctx context.Context, q querier, id domain.ProblemId, set domain.MemberSet) (domain.ActorSet, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT actor_id FROM problem_members WHERE problem_id = ? AND member_set = ? ORDER BY rowid`,
		id.String(), string(set))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members domain.ActorSet
	for rows.Next() {
		var actor string
		if err := rows.Scan(&actor); err != nil {
			return nil, err
		}
		members = append(members, domain.ActorId(actor))
	}
	return members, rows.Err()
}

func nonNilSnapshots(s []domain.ResolutionSnapshot) []domain.ResolutionSnapshot {
	if s == nil {
		return []domain.ResolutionSnapshot{}
	}
	return s
}
