package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Статусы задания импорта; терминальные — completed, cancelled, failed
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusCancelled = "cancelled"
	JobStatusFailed    = "failed"
)

// Типы фоновых заданий
const (
	JobTypeImport    = "import"
	JobTypePriceSync = "price_sync"
)

// Блокировка без биения сердца дольше этого срока считается брошенной
// упавшим процессом и может быть перехвачена
const staleLockAge = time.Hour

// ImportJob запись о фоновом задании. Прогресс хранится в сервисной БД
// и переживает перезапуск процесса; пишет в запись только контроллер
// заданий
type ImportJob struct {
	JobID           string     `json:"job_id"`
	JobType         string     `json:"job_type"`
	Status          string     `json:"status"`
	Total           int        `json:"total"`
	Processed       int        `json:"processed"`
	SuccessCount    int        `json:"success_count"`
	FailCount       int        `json:"fail_count"`
	CancelRequested bool       `json:"cancel_requested"`
	Message         string     `json:"message,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	HeartbeatAt     *time.Time `json:"heartbeat_at,omitempty"`
}

// Running не достигло ли задание терминального статуса
func (j *ImportJob) Running() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// CreateImportJob регистрирует новое задание
func (db *ServiceDB) CreateImportJob(job *ImportJob) error {
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now()
	}
	if job.Status == "" {
		job.Status = JobStatusPending
	}

	_, err := db.conn.Exec(`
		INSERT INTO import_jobs (
			job_id, job_type, status, total, processed, success_count,
			fail_count, cancel_requested, message, started_at, heartbeat_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.JobID, job.JobType, job.Status, job.Total, job.Processed,
		job.SuccessCount, job.FailCount, job.CancelRequested, job.Message,
		job.StartedAt, job.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}
	return nil
}

// GetImportJob получает задание по id; (nil, nil) если задания нет
func (db *ServiceDB) GetImportJob(jobID string) (*ImportJob, error) {
	row := db.conn.QueryRow(importJobSelect+` WHERE job_id = ?`, jobID)

	job, err := scanImportJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}
	return job, nil
}

// GetLatestImportJob получает последнее задание данного типа;
// (nil, nil) если заданий такого типа еще не было
func (db *ServiceDB) GetLatestImportJob(jobType string) (*ImportJob, error) {
	row := db.conn.QueryRow(
		importJobSelect+` WHERE job_type = ? ORDER BY started_at DESC LIMIT 1`, jobType,
	)

	job, err := scanImportJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest import job: %w", err)
	}
	return job, nil
}

// ListImportJobs возвращает последние задания, свежие первыми
func (db *ServiceDB) ListImportJobs(limit int) ([]ImportJob, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(importJobSelect+` ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// UpdateImportJobProgress сохраняет контрольную точку прогресса
// и обновляет heartbeat задания
func (db *ServiceDB) UpdateImportJobProgress(jobID string, total, processed, success, fail int) error {
	_, err := db.conn.Exec(`
		UPDATE import_jobs
		SET total = ?, processed = ?, success_count = ?, fail_count = ?, heartbeat_at = ?
		WHERE job_id = ?
	`, total, processed, success, fail, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// MarkImportJobRunning переводит задание из pending в running
func (db *ServiceDB) MarkImportJobRunning(jobID string) error {
	_, err := db.conn.Exec(`
		UPDATE import_jobs SET status = ?, heartbeat_at = ? WHERE job_id = ? AND status = ?
	`, JobStatusRunning, time.Now(), jobID, JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// FinishImportJob переводит задание в терминальный статус
func (db *ServiceDB) FinishImportJob(jobID, status, message string) error {
	_, err := db.conn.Exec(`
		UPDATE import_jobs SET status = ?, message = ?, completed_at = ? WHERE job_id = ?
	`, status, message, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to finish import job: %w", err)
	}
	return nil
}

// RequestImportJobCancel взводит флаг отмены у активного задания.
// Для задания в терминальном статусе возвращает ошибку
func (db *ServiceDB) RequestImportJobCancel(jobID string) error {
	result, err := db.conn.Exec(`
		UPDATE import_jobs SET cancel_requested = 1
		WHERE job_id = ? AND status IN (?, ?)
	`, jobID, JobStatusPending, JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to request job cancel: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s is not running", jobID)
	}
	return nil
}

// IsImportJobCancelRequested читает флаг отмены задания
func (db *ServiceDB) IsImportJobCancelRequested(jobID string) (bool, error) {
	var requested bool
	err := db.conn.QueryRow(
		`SELECT cancel_requested FROM import_jobs WHERE job_id = ?`, jobID,
	).Scan(&requested)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("job %s not found", jobID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}
	return requested, nil
}

// AcquireJobLock захватывает advisory-блокировку типа задания.
// Возвращает false, если блокировку держит живое задание; брошенная
// блокировка (без heartbeat дольше staleLockAge) перехватывается.
// Атомарность обеспечивает первичный ключ job_type
func (db *ServiceDB) AcquireJobLock(jobType, ownerID string) (bool, error) {
	_, err := db.conn.Exec(
		`DELETE FROM job_locks WHERE job_type = ? AND heartbeat_at < ?`,
		jobType, time.Now().Add(-staleLockAge),
	)
	if err != nil {
		return false, fmt.Errorf("failed to clear stale job lock: %w", err)
	}

	now := time.Now()
	result, err := db.conn.Exec(`
		INSERT INTO job_locks (job_type, owner_id, acquired_at, heartbeat_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(job_type) DO NOTHING
	`, jobType, ownerID, now, now)
	if err != nil {
		return false, fmt.Errorf("failed to acquire job lock: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check job lock acquisition: %w", err)
	}
	return n == 1, nil
}

// ReleaseJobLock снимает блокировку; чужую (перехваченную после простоя)
// блокировку владелец снять не может
func (db *ServiceDB) ReleaseJobLock(jobType, ownerID string) error {
	_, err := db.conn.Exec(
		`DELETE FROM job_locks WHERE job_type = ? AND owner_id = ?`, jobType, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to release job lock: %w", err)
	}
	return nil
}

// HeartbeatJobLock продлевает блокировку; вызывается вместе
// с контрольными точками прогресса
func (db *ServiceDB) HeartbeatJobLock(jobType, ownerID string) error {
	_, err := db.conn.Exec(
		`UPDATE job_locks SET heartbeat_at = ? WHERE job_type = ? AND owner_id = ?`,
		time.Now(), jobType, ownerID,
	)
	if err != nil {
		return fmt.Errorf("failed to heartbeat job lock: %w", err)
	}
	return nil
}

// MarkAbandonedImportJobs помечает failed задания, которые числятся
// активными, но не обновляли heartbeat дольше maxAge — след аварийно
// завершившегося процесса. Возвращает число помеченных заданий
func (db *ServiceDB) MarkAbandonedImportJobs(maxAge time.Duration) (int, error) {
	result, err := db.conn.Exec(`
		UPDATE import_jobs SET status = ?, message = ?, completed_at = ?
		WHERE status IN (?, ?) AND heartbeat_at < ?
	`, JobStatusFailed, "abandoned: no heartbeat from worker process",
		time.Now(), JobStatusPending, JobStatusRunning, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to mark abandoned jobs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count abandoned jobs: %w", err)
	}
	return int(n), nil
}

const importJobSelect = `
	SELECT job_id, job_type, status, total, processed, success_count,
		fail_count, cancel_requested, message, started_at, completed_at, heartbeat_at
	FROM import_jobs
`

func scanImportJob(row rowScanner) (*ImportJob, error) {
	var job ImportJob
	var message sql.NullString
	var startedAt, completedAt, heartbeatAt sql.NullTime

	err := row.Scan(
		&job.JobID, &job.JobType, &job.Status, &job.Total, &job.Processed,
		&job.SuccessCount, &job.FailCount, &job.CancelRequested, &message,
		&startedAt, &completedAt, &heartbeatAt,
	)
	if err != nil {
		return nil, err
	}

	job.Message = nullString(message)
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	job.CompletedAt = nullTimePtr(completedAt)
	job.HeartbeatAt = nullTimePtr(heartbeatAt)

	return &job, nil
}
