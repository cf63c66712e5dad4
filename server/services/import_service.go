package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"importserver/database"
	apperrors "importserver/server/errors"
)

// ImportStatus текущее состояние контроллера заданий для API и GUI
type ImportStatus struct {
	IsRunning   bool   `json:"is_running"`
	JobID       string `json:"job_id,omitempty"`
	JobType     string `json:"job_type,omitempty"`
	Total       int    `json:"total"`
	Processed   int    `json:"processed"`
	Success     int    `json:"success"`
	Errors      int    `json:"errors"`
	StartTime   string `json:"start_time,omitempty"`
	ElapsedTime string `json:"elapsed_time,omitempty"`
}

// ImportStateManager - интерфейс для управления состоянием заданий импорта.
// Сервис — единственный источник правды о том, идет ли задание в этом
// процессе; межпроцессную единственность обеспечивает advisory-блокировка
// job_locks в сервисной БД, захватываемая и отпускаемая вместе с
// состоянием в памяти
type ImportStateManager interface {
	// IsRunning возвращает true, если задание запущено в этом процессе
	IsRunning() bool
	// Begin помечает задание запущенным и создает его запись в БД
	Begin(jobType string, total int) (*database.ImportJob, error)
	// Stop останавливает текущее задание
	Stop() bool
	// GetStatus возвращает текущий статус контроллера
	GetStatus() ImportStatus
}

// ImportService сервис для управления фоновыми заданиями импорта.
// Хранит живые счетчики текущего задания и синхронизирует его
// персистентную запись в сервисной БД
type ImportService struct {
	serviceDB *database.ServiceDB

	// ownerID идентифицирует процесс-владелец в job_locks
	ownerID string

	checkpointEvery int

	importMutex     sync.RWMutex
	importRunning   bool
	importJobID     string
	importJobType   string
	importStartTime time.Time
	importTotal     int
	importProcessed int
	importSuccess   int
	importErrors    int
	importCancel    context.CancelFunc

	jobCounter   int
	jobCounterMu sync.Mutex
}

// NewImportService создает новый сервис заданий импорта
func NewImportService(serviceDB *database.ServiceDB, checkpointEvery int) *ImportService {
	if checkpointEvery <= 0 {
		checkpointEvery = 5
	}
	return &ImportService{
		serviceDB:       serviceDB,
		ownerID:         uuid.NewString(),
		checkpointEvery: checkpointEvery,
		importRunning:   false,
	}
}

// Compile-time проверка, что ImportService реализует интерфейс ImportStateManager
var _ ImportStateManager = (*ImportService)(nil)

// IsRunning проверяет, запущено ли задание в этом процессе
func (is *ImportService) IsRunning() bool {
	is.importMutex.RLock()
	defer is.importMutex.RUnlock()
	return is.importRunning
}

// Begin помечает задание запущенным, захватывает блокировку его типа
// и создает персистентную запись. Возвращает ConflictError, если задание
// уже идет в этом процессе или блокировку держит другой живой процесс
func (is *ImportService) Begin(jobType string, total int) (*database.ImportJob, error) {
	is.importMutex.Lock()
	defer is.importMutex.Unlock()

	if is.importRunning {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("задание %s уже запущено", is.importJobType), nil)
	}

	if is.serviceDB == nil {
		return nil, apperrors.NewServiceUnavailableError("сервисная база данных недоступна", nil)
	}

	acquired, err := is.serviceDB.AcquireJobLock(jobType, is.ownerID)
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось захватить блокировку задания", err)
	}
	if !acquired {
		return nil, apperrors.NewConflictError(
			fmt.Sprintf("задание %s уже выполняется другим процессом", jobType), nil)
	}

	job := &database.ImportJob{
		JobID:   is.generateJobID(jobType),
		JobType: jobType,
		Status:  database.JobStatusPending,
		Total:   total,
	}
	if err := is.serviceDB.CreateImportJob(job); err != nil {
		// Запись не создана — блокировку держать незачем
		_ = is.serviceDB.ReleaseJobLock(jobType, is.ownerID)
		return nil, apperrors.NewInternalError("не удалось создать запись задания", err)
	}

	is.importRunning = true
	is.importJobID = job.JobID
	is.importJobType = jobType
	is.importStartTime = time.Now()
	is.importTotal = total
	is.importProcessed = 0
	is.importSuccess = 0
	is.importErrors = 0

	return job, nil
}

// BindCancel привязывает cancel-функцию контекста текущего задания,
// чтобы Stop мог прервать выполнение
func (is *ImportService) BindCancel(cancel context.CancelFunc) {
	is.importMutex.Lock()
	defer is.importMutex.Unlock()
	is.importCancel = cancel
}

// MarkRunning переводит запись задания из pending в running
func (is *ImportService) MarkRunning(jobID string) error {
	return is.serviceDB.MarkImportJobRunning(jobID)
}

// SetTotal уточняет объем задания после раскрытия списка позиций
func (is *ImportService) SetTotal(total int) {
	is.importMutex.Lock()
	is.importTotal = total
	is.importMutex.Unlock()
}

// RecordItem учитывает результат одной позиции и возвращает номер
// позиции вместе с признаком, что пора писать контрольную точку
func (is *ImportService) RecordItem(success bool) (processed int, checkpointDue bool) {
	is.importMutex.Lock()
	defer is.importMutex.Unlock()

	is.importProcessed++
	if success {
		is.importSuccess++
	} else {
		is.importErrors++
	}
	processed = is.importProcessed
	checkpointDue = processed%is.checkpointEvery == 0 || processed == is.importTotal
	return processed, checkpointDue
}

// Checkpoint сохраняет прогресс текущего задания в БД и продлевает
// heartbeat его блокировки
func (is *ImportService) Checkpoint() error {
	is.importMutex.RLock()
	jobID := is.importJobID
	jobType := is.importJobType
	total := is.importTotal
	processed := is.importProcessed
	success := is.importSuccess
	errs := is.importErrors
	is.importMutex.RUnlock()

	if jobID == "" {
		return nil
	}
	if err := is.serviceDB.UpdateImportJobProgress(jobID, total, processed, success, errs); err != nil {
		return err
	}
	return is.serviceDB.HeartbeatJobLock(jobType, is.ownerID)
}

// Finish записывает терминальный статус задания, снимает блокировку
// и сбрасывает состояние в памяти. Вызывается ровно один раз на задание
func (is *ImportService) Finish(status, message string) error {
	// Последняя контрольная точка до смены статуса
	if err := is.Checkpoint(); err != nil {
		return err
	}

	is.importMutex.Lock()
	jobID := is.importJobID
	jobType := is.importJobType
	is.importRunning = false
	is.importJobID = ""
	is.importJobType = ""
	is.importCancel = nil
	is.importMutex.Unlock()

	if jobID == "" {
		return nil
	}
	if err := is.serviceDB.FinishImportJob(jobID, status, message); err != nil {
		return err
	}
	return is.serviceDB.ReleaseJobLock(jobType, is.ownerID)
}

// Stop останавливает текущее задание: взводит персистентный флаг отмены
// и отменяет контекст. Возвращает true, если задание было запущено
func (is *ImportService) Stop() bool {
	is.importMutex.Lock()
	defer is.importMutex.Unlock()

	wasRunning := is.importRunning
	if is.importJobID != "" {
		// Ошибка не критична: контекст все равно отменяется
		_ = is.serviceDB.RequestImportJobCancel(is.importJobID)
	}

	if is.importCancel != nil {
		is.importCancel()
		is.importCancel = nil
	}

	return wasRunning
}

// CancelJob взводит флаг отмены задания по id. Для задания, идущего
// в этом процессе, дополнительно отменяется контекст; задание другого
// процесса увидит флаг на ближайшей границе позиции
func (is *ImportService) CancelJob(jobID string) error {
	job, err := is.serviceDB.GetImportJob(jobID)
	if err != nil {
		return apperrors.NewInternalError("не удалось получить задание", err)
	}
	if job == nil {
		return apperrors.NewNotFoundError("задание не найдено", nil)
	}
	if !job.Running() {
		return apperrors.NewConflictError(
			fmt.Sprintf("задание уже завершено со статусом %s", job.Status), nil)
	}

	if err := is.serviceDB.RequestImportJobCancel(jobID); err != nil {
		return apperrors.NewInternalError("не удалось запросить отмену", err)
	}

	is.importMutex.Lock()
	if is.importJobID == jobID && is.importCancel != nil {
		is.importCancel()
		is.importCancel = nil
	}
	is.importMutex.Unlock()

	return nil
}

// CancelRequested читает персистентный флаг отмены задания
func (is *ImportService) CancelRequested(jobID string) bool {
	requested, err := is.serviceDB.IsImportJobCancelRequested(jobID)
	if err != nil {
		return false
	}
	return requested
}

// CreateStopCheck создает функцию проверки остановки для цикла импорта.
// Проверяет и контекст, и персистентный флаг отмены — флаг мог взвести
// другой процесс
func (is *ImportService) CreateStopCheck(ctx context.Context, jobID string) func() bool {
	return func() bool {
		select {
		case <-ctx.Done():
			return true
		default:
		}
		return is.CancelRequested(jobID)
	}
}

// GetStatus возвращает статус заданий импорта
func (is *ImportService) GetStatus() ImportStatus {
	is.importMutex.RLock()
	defer is.importMutex.RUnlock()

	status := ImportStatus{
		IsRunning: is.importRunning,
		JobID:     is.importJobID,
		JobType:   is.importJobType,
		Total:     is.importTotal,
		Processed: is.importProcessed,
		Success:   is.importSuccess,
		Errors:    is.importErrors,
	}
	if !is.importStartTime.IsZero() {
		status.StartTime = is.importStartTime.Format(time.RFC3339)
		status.ElapsedTime = time.Since(is.importStartTime).String()
	}
	return status
}

// JobByID возвращает персистентную запись задания
func (is *ImportService) JobByID(jobID string) (*database.ImportJob, error) {
	job, err := is.serviceDB.GetImportJob(jobID)
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось получить задание", err)
	}
	if job == nil {
		return nil, apperrors.NewNotFoundError("задание не найдено", nil)
	}
	return job, nil
}

// LatestJob возвращает последнее задание данного типа
func (is *ImportService) LatestJob(jobType string) (*database.ImportJob, error) {
	job, err := is.serviceDB.GetLatestImportJob(jobType)
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось получить задание", err)
	}
	if job == nil {
		return nil, apperrors.NewNotFoundError(
			fmt.Sprintf("заданий типа %s еще не было", jobType), nil)
	}
	return job, nil
}

// ListJobs возвращает последние задания, свежие первыми
func (is *ImportService) ListJobs(limit int) ([]database.ImportJob, error) {
	jobs, err := is.serviceDB.ListImportJobs(limit)
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось получить список заданий", err)
	}
	return jobs, nil
}

// generateJobID генерирует уникальный ID задания
func (is *ImportService) generateJobID(jobType string) string {
	is.jobCounterMu.Lock()
	is.jobCounter++
	id := fmt.Sprintf("%s_%d_%d", jobType, time.Now().Unix(), is.jobCounter)
	is.jobCounterMu.Unlock()
	return id
}
