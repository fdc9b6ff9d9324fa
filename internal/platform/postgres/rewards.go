package postgres

import (
	"context"

	"github.com/zagip/zagip-game/internal/domain"
)

const codeColumns = `id, code, reward, max_uses, current_uses, active, created_at`

func scanCode(row rowScanner) (*domain.RedeemableCode, error) {
	var c domain.RedeemableCode
	if err := row.Scan(&c.ID, &c.Code, &c.Reward, &c.MaxUses, &c.CurrentUses, &c.Active, &c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (t *pgTx) LockCodeByValue(ctx context.Context, code string) (*domain.RedeemableCode, error) {
	return scanCode(t.tx.QueryRow(ctx, `SELECT `+codeColumns+` FROM codes WHERE code = $1 FOR UPDATE`, code))
}

func (t *pgTx) CreateCode(ctx context.Context, c *domain.RedeemableCode) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO codes (code, reward, max_uses, current_uses, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		c.Code, c.Reward, c.MaxUses, c.CurrentUses, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) UpdateCodeUses(ctx context.Context, codeID int64, currentUses int) error {
	return t.execOne(ctx, `UPDATE codes SET current_uses = $2 WHERE id = $1`, codeID, currentUses)
}

func (t *pgTx) Codes(ctx context.Context) ([]*domain.RedeemableCode, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+codeColumns+` FROM codes ORDER BY id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*domain.RedeemableCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) DeleteCode(ctx context.Context, id int64) error {
	return t.execOne(ctx, `DELETE FROM codes WHERE id = $1`, id)
}

func (t *pgTx) HasCodeUsage(ctx context.Context, codeID, userID int64) (bool, error) {
	return t.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM code_usages WHERE code_id = $1 AND user_id = $2)`, codeID, userID)
}

func (t *pgTx) InsertCodeUsage(ctx context.Context, u *domain.CodeUsage) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO code_usages (code_id, user_id) VALUES ($1, $2) RETURNING used_at`,
		u.CodeID, u.UserID,
	).Scan(&u.UsedAt)
	return mapErr(err)
}

func (t *pgTx) CountCodeUsagesByUser(ctx context.Context, userID int64) (int, error) {
	return t.count(ctx, `SELECT COUNT(*) FROM code_usages WHERE user_id = $1`, userID)
}

const taskColumns = `id, title, description, link, reward, active, created_at`

func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Link, &task.Reward, &task.Active, &task.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &task, nil
}

func (t *pgTx) TaskByID(ctx context.Context, id int64) (*domain.Task, error) {
	return scanTask(t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (t *pgTx) CreateTask(ctx context.Context, task *domain.Task) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO tasks (title, description, link, reward, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		task.Title, task.Description, task.Link, task.Reward, task.Active,
	).Scan(&task.ID, &task.CreatedAt)
	return mapErr(err)
}

func (t *pgTx) Tasks(ctx context.Context, activeOnly bool) ([]*domain.Task, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE active OR NOT $1 ORDER BY id`, activeOnly)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, mapErr(rows.Err())
}

func (t *pgTx) DeleteTask(ctx context.Context, id int64) error {
	return t.execOne(ctx, `DELETE FROM tasks WHERE id = $1`, id)
}

func (t *pgTx) HasTaskCompletion(ctx context.Context, taskID, userID int64) (bool, error) {
	return t.exists(ctx,
		`SELECT EXISTS(SELECT 1 FROM task_completions WHERE task_id = $1 AND user_id = $2)`, taskID, userID)
}

func (t *pgTx) InsertTaskCompletion(ctx context.Context, c *domain.TaskCompletion) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO task_completions (task_id, user_id) VALUES ($1, $2) RETURNING completed_at`,
		c.TaskID, c.UserID,
	).Scan(&c.CompletedAt)
	return mapErr(err)
}

func (t *pgTx) CountTaskCompletionsByUser(ctx context.Context, userID int64) (int, error) {
	return t.count(ctx, `SELECT COUNT(*) FROM task_completions WHERE user_id = $1`, userID)
}
