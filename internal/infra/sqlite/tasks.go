package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tapcore-app/tapcore/internal/domain"
)

// ─── Task Template Operations ───────────────────────────────────────────────

// InsertTask adds a task template.
func (db *DB) InsertTask(t domain.Task) (int64, error) {
	res, err := db.conn.Exec(`
		INSERT INTO tasks (task_type, action_type, target_value, reward, title, description, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(t.Type), string(t.Action), t.TargetValue, t.Reward, t.Title, nullable(t.Description), boolInt(t.Active))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetTask returns one task template.
func (db *DB) GetTask(id int64) (domain.Task, error) {
	row := db.conn.QueryRow(taskSelect+` WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks returns active task templates, optionally filtered by type.
func (db *DB) ListTasks(taskType domain.TaskType) ([]domain.Task, error) {
	query := taskSelect + ` WHERE is_active = 1`
	args := []interface{}{}
	if taskType != "" {
		query += ` AND task_type = ?`
		args = append(args, string(taskType))
	}
	query += ` ORDER BY id`

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ─── Per-User Progress Operations ───────────────────────────────────────────

// TaskProgressFor returns the user's progress against every active task for
// the current period, creating zero-progress rows lazily.
func (db *DB) TaskProgressFor(userID int64, taskType domain.TaskType, now time.Time) ([]domain.TaskProgress, error) {
	tasks, err := db.ListTasks(taskType)
	if err != nil {
		return nil, err
	}

	progress := make([]domain.TaskProgress, 0, len(tasks))
	for _, task := range tasks {
		period := domain.PeriodStart(task.Type, now)
		if err := db.ensureUserTask(userID, task.ID, period); err != nil {
			return nil, err
		}

		var p int64
		var completed, claimed int
		err := db.conn.QueryRow(`
			SELECT progress, is_completed, is_claimed FROM user_tasks
			WHERE user_id = ? AND task_id = ? AND period_start = ?
		`, userID, task.ID, formatTime(period)).Scan(&p, &completed, &claimed)
		if err != nil {
			return nil, err
		}

		progress = append(progress, domain.TaskProgress{
			TaskID:      task.ID,
			Type:        task.Type,
			Action:      task.Action,
			Title:       task.Title,
			Description: task.Description,
			TargetValue: task.TargetValue,
			Reward:      task.Reward,
			Progress:    p,
			IsCompleted: completed == 1,
			IsClaimed:   claimed == 1,
		})
	}
	return progress, nil
}

// AdvanceTaskProgress adds amount to every active task counting the given
// action for the current period. Claimed tasks are skipped; tasks reaching
// their target are marked completed.
func (db *DB) AdvanceTaskProgress(userID int64, action domain.ActionType, amount int64, now time.Time) error {
	if amount <= 0 {
		return nil
	}
	tasks, err := db.ListTasks("")
	if err != nil {
		return err
	}

	for _, task := range tasks {
		if task.Action != action {
			continue
		}
		period := domain.PeriodStart(task.Type, now)
		if err := db.ensureUserTask(userID, task.ID, period); err != nil {
			return err
		}
		if _, err := db.conn.Exec(`
			UPDATE user_tasks
			SET progress = progress + ?,
			    is_completed = CASE WHEN progress + ? >= ? THEN 1 ELSE is_completed END
			WHERE user_id = ? AND task_id = ? AND period_start = ? AND is_claimed = 0
		`, amount, amount, task.TargetValue, userID, task.ID, formatTime(period)); err != nil {
			return err
		}
	}
	return nil
}

// ClaimTask pays out a completed task's reward and latches is_claimed, all in
// one transaction. A task that is incomplete or already claimed returns
// ErrTaskNotClaimable with no state change.
func (db *DB) ClaimTask(userID, taskID int64, now time.Time) (int64, error) {
	task, err := db.GetTask(taskID)
	if err != nil {
		return 0, err
	}
	period := domain.PeriodStart(task.Type, now)
	if err := db.ensureUserTask(userID, taskID, period); err != nil {
		return 0, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var completed, claimed int
	err = tx.QueryRow(`
		SELECT is_completed, is_claimed FROM user_tasks
		WHERE user_id = ? AND task_id = ? AND period_start = ?
	`, userID, taskID, formatTime(period)).Scan(&completed, &claimed)
	if err != nil {
		return 0, err
	}
	if completed != 1 || claimed == 1 {
		return 0, domain.ErrTaskNotClaimable
	}

	if _, err := tx.Exec(`
		UPDATE user_tasks SET is_claimed = 1
		WHERE user_id = ? AND task_id = ? AND period_start = ?
	`, userID, taskID, formatTime(period)); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`UPDATE users SET balance = balance + ? WHERE id = ?`, task.Reward, userID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return task.Reward, nil
}

// ResetTasks deletes progress rows from periods older than the current one
// for the given task type. Returns the number of rows removed.
func (db *DB) ResetTasks(taskType domain.TaskType, now time.Time) (int64, error) {
	period := domain.PeriodStart(taskType, now)
	res, err := db.conn.Exec(`
		DELETE FROM user_tasks
		WHERE period_start < ?
		  AND task_id IN (SELECT id FROM tasks WHERE task_type = ?)
	`, formatTime(period), string(taskType))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (db *DB) ensureUserTask(userID, taskID int64, period time.Time) error {
	_, err := db.conn.Exec(`
		INSERT OR IGNORE INTO user_tasks (user_id, task_id, period_start)
		VALUES (?, ?, ?)
	`, userID, taskID, formatTime(period))
	return err
}

// ─── Scan Helpers ───────────────────────────────────────────────────────────

const taskSelect = `
	SELECT id, task_type, action_type, target_value, reward, title, COALESCE(description, ''), is_active
	FROM tasks`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var taskType, action string
	var active int
	err := row.Scan(&t.ID, &taskType, &action, &t.TargetValue, &t.Reward, &t.Title, &t.Description, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	t.Type = domain.TaskType(taskType)
	t.Action = domain.ActionType(action)
	t.Active = active == 1
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
