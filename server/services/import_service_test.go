package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"importserver/database"
	apperrors "importserver/server/errors"
)

// setupTestServiceDB создает тестовую сервисную БД в памяти
func setupTestServiceDB(t *testing.T) *database.ServiceDB {
	serviceDB, err := database.NewServiceDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test service database: %v", err)
	}
	t.Cleanup(func() { serviceDB.Close() })
	return serviceDB
}

// appErrorCode достает HTTP статус из ошибки приложения
func appErrorCode(t *testing.T, err error) int {
	t.Helper()
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T: %v", err, err)
	}
	return appErr.Code
}

// TestNewImportService проверяет создание сервиса заданий
func TestNewImportService(t *testing.T) {
	serviceDB := setupTestServiceDB(t)

	service := NewImportService(serviceDB, 0)
	if service == nil {
		t.Fatal("NewImportService() should not return nil")
	}
	if service.checkpointEvery != 5 {
		t.Errorf("checkpointEvery = %d, want default 5", service.checkpointEvery)
	}
	if service.IsRunning() {
		t.Error("Expected new service to not be running")
	}
}

// TestImportService_BeginAndFinish проверяет полный жизненный цикл задания
func TestImportService_BeginAndFinish(t *testing.T) {
	serviceDB := setupTestServiceDB(t)
	service := NewImportService(serviceDB, 5)

	job, err := service.Begin(database.JobTypeImport, 10)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if job.JobID == "" {
		t.Error("Expected job to have an ID")
	}
	if job.Status != database.JobStatusPending {
		t.Errorf("job status = %s, want %s", job.Status, database.JobStatusPending)
	}

	if !service.IsRunning() {
		t.Error("Expected service to be running after Begin()")
	}

	status := service.GetStatus()
	if status.JobID != job.JobID || status.JobType != database.JobTypeImport {
		t.Errorf("unexpected status: %+v", status)
	}
	if status.Total != 10 {
		t.Errorf("status.Total = %d, want 10", status.Total)
	}

	// Запись должна существовать в БД
	stored, err := serviceDB.GetImportJob(job.JobID)
	if err != nil {
		t.Fatalf("GetImportJob() error = %v", err)
	}
	if stored == nil {
		t.Fatal("Expected job record to exist in service DB")
	}

	// Повторный Begin при идущем задании невозможен
	if _, err := service.Begin(database.JobTypeImport, 5); err == nil {
		t.Error("Expected conflict error for second Begin()")
	} else if code := appErrorCode(t, err); code != http.StatusConflict {
		t.Errorf("second Begin() status = %d, want %d", code, http.StatusConflict)
	}

	if err := service.Finish(database.JobStatusCompleted, "done"); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if service.IsRunning() {
		t.Error("Expected service to not be running after Finish()")
	}

	stored, err = serviceDB.GetImportJob(job.JobID)
	if err != nil {
		t.Fatalf("GetImportJob() after finish error = %v", err)
	}
	if stored.Status != database.JobStatusCompleted {
		t.Errorf("stored status = %s, want %s", stored.Status, database.JobStatusCompleted)
	}
	if stored.Message != "done" {
		t.Errorf("stored message = %q, want %q", stored.Message, "done")
	}

	// После Finish блокировка снята и можно начать новое задание
	if _, err := service.Begin(database.JobTypeImport, 1); err != nil {
		t.Errorf("Begin() after Finish() error = %v", err)
	}
	service.Finish(database.JobStatusCompleted, "")
}

// TestImportService_RecordItemCheckpoints проверяет каденс контрольных точек
func TestImportService_RecordItemCheckpoints(t *testing.T) {
	serviceDB := setupTestServiceDB(t)
	service := NewImportService(serviceDB, 3)

	job, err := service.Begin(database.JobTypeImport, 7)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer service.Finish(database.JobStatusCompleted, "")

	wantDue := []bool{false, false, true, false, false, true, true} // каждые 3 и последняя
	for i, want := range wantDue {
		success := i%2 == 0
		processed, due := service.RecordItem(success)
		if processed != i+1 {
			t.Errorf("RecordItem #%d processed = %d, want %d", i+1, processed, i+1)
		}
		if due != want {
			t.Errorf("RecordItem #%d checkpointDue = %v, want %v", i+1, due, want)
		}
		if due {
			if err := service.Checkpoint(); err != nil {
				t.Fatalf("Checkpoint() error = %v", err)
			}
		}
	}

	status := service.GetStatus()
	if status.Processed != 7 || status.Success != 4 || status.Errors != 3 {
		t.Errorf("unexpected counters: %+v", status)
	}

	// Контрольная точка должна быть видна в персистентной записи
	stored, err := serviceDB.GetImportJob(job.JobID)
	if err != nil {
		t.Fatalf("GetImportJob() error = %v", err)
	}
	if stored.Processed != 7 || stored.SuccessCount != 4 || stored.FailCount != 3 {
		t.Errorf("stored progress = %d/%d/%d, want 7/4/3",
			stored.Processed, stored.SuccessCount, stored.FailCount)
	}
}

// TestImportService_StopCancelsContext проверяет остановку задания
func TestImportService_StopCancelsContext(t *testing.T) {
	serviceDB := setupTestServiceDB(t)
	service := NewImportService(serviceDB, 5)

	job, err := service.Begin(database.JobTypeImport, 3)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	service.BindCancel(cancel)

	if !service.Stop() {
		t.Error("Stop() = false, want true for running job")
	}

	select {
	case <-ctx.Done():
	default:
		t.Error("Expected job context to be cancelled after Stop()")
	}

	// Персистентный флаг отмены тоже взведен
	requested, err := serviceDB.IsImportJobCancelRequested(job.JobID)
	if err != nil {
		t.Fatalf("IsImportJobCancelRequested() error = %v", err)
	}
	if !requested {
		t.Error("Expected cancel flag to be set after Stop()")
	}

	service.Finish(database.JobStatusCancelled, "stopped by operator")
}

// TestImportService_CancelJob проверяет отмену задания по id
func TestImportService_CancelJob(t *testing.T) {
	serviceDB := setupTestServiceDB(t)
	service := NewImportService(serviceDB, 5)

	// Отмена несуществующего задания
	if err := service.CancelJob("missing"); err == nil {
		t.Error("Expected error for missing job")
	} else if code := appErrorCode(t, err); code != http.StatusNotFound {
		t.Errorf("CancelJob(missing) status = %d, want %d", code, http.StatusNotFound)
	}

	job, err := service.Begin(database.JobTypeImport, 3)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	service.BindCancel(cancel)

	if err := service.CancelJob(job.JobID); err != nil {
		t.Fatalf("CancelJob() error = %v", err)
	}

	select {
	case <-ctx.Done():
	default:
		t.Error("Expected context to be cancelled for local job")
	}

	if !service.CancelRequested(job.JobID) {
		t.Error("Expected CancelRequested() = true")
	}

	if err := service.Finish(database.JobStatusCancelled, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	// Завершенное задание отменить нельзя
	if err := service.CancelJob(job.JobID); err == nil {
		t.Error("Expected conflict for finished job")
	} else if code := appErrorCode(t, err); code != http.StatusConflict {
		t.Errorf("CancelJob(finished) status = %d, want %d", code, http.StatusConflict)
	}
}

// TestImportService_CreateStopCheck проверяет функцию проверки остановки
func TestImportService_CreateStopCheck(t *testing.T) {
	serviceDB := setupTestServiceDB(t)
	service := NewImportService(serviceDB, 5)

	job, err := service.Begin(database.JobTypeImport, 3)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer service.Finish(database.JobStatusCancelled, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopCheck := service.CreateStopCheck(ctx, job.JobID)
	if stopCheck() {
		t.Error("Expected stopCheck() = false initially")
	}

	// Флаг отмены мог взвести и другой процесс напрямую в БД
	if err := serviceDB.RequestImportJobCancel(job.JobID); err != nil {
		t.Fatalf("RequestImportJobCancel() error = %v", err)
	}
	if !stopCheck() {
		t.Error("Expected stopCheck() = true after persistent cancel flag")
	}
}

// TestImportService_LockBlocksOtherProcess проверяет межпроцессную
// единственность заданий одного типа
func TestImportService_LockBlocksOtherProcess(t *testing.T) {
	serviceDB := setupTestServiceDB(t)

	// Два сервиса на одной сервисной БД имитируют два процесса
	first := NewImportService(serviceDB, 5)
	second := NewImportService(serviceDB, 5)

	if _, err := first.Begin(database.JobTypeImport, 1); err != nil {
		t.Fatalf("first Begin() error = %v", err)
	}

	if _, err := second.Begin(database.JobTypeImport, 1); err == nil {
		t.Error("Expected second process Begin() to fail while lock is held")
	} else if code := appErrorCode(t, err); code != http.StatusConflict {
		t.Errorf("second process Begin() status = %d, want %d", code, http.StatusConflict)
	}

	// Задание другого типа блокировкой import не ограничено
	if _, err := second.Begin(database.JobTypePriceSync, 1); err != nil {
		t.Errorf("Begin(price_sync) error = %v", err)
	}
	second.Finish(database.JobStatusCompleted, "")

	if err := first.Finish(database.JobStatusCompleted, ""); err != nil {
		t.Fatalf("first Finish() error = %v", err)
	}

	// После снятия блокировки второй процесс может начать import
	if _, err := second.Begin(database.JobTypeImport, 1); err != nil {
		t.Errorf("second Begin() after release error = %v", err)
	}
	second.Finish(database.JobStatusCompleted, "")
}

// TestImportService_JobQueries проверяет выборки заданий
func TestImportService_JobQueries(t *testing.T) {
	serviceDB := setupTestServiceDB(t)
	service := NewImportService(serviceDB, 5)

	job, err := service.Begin(database.JobTypeImport, 2)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	service.Finish(database.JobStatusCompleted, "")

	got, err := service.JobByID(job.JobID)
	if err != nil {
		t.Fatalf("JobByID() error = %v", err)
	}
	if got.JobID != job.JobID {
		t.Errorf("JobByID() = %s, want %s", got.JobID, job.JobID)
	}

	if _, err := service.JobByID("missing"); err == nil {
		t.Error("Expected error for missing job id")
	} else if code := appErrorCode(t, err); code != http.StatusNotFound {
		t.Errorf("JobByID(missing) status = %d, want %d", code, http.StatusNotFound)
	}

	latest, err := service.LatestJob(database.JobTypeImport)
	if err != nil {
		t.Fatalf("LatestJob() error = %v", err)
	}
	if latest.JobID != job.JobID {
		t.Errorf("LatestJob() = %s, want %s", latest.JobID, job.JobID)
	}

	if _, err := service.LatestJob(database.JobTypePriceSync); err == nil {
		t.Error("Expected error when no jobs of type exist")
	}

	jobs, err := service.ListJobs(10)
	if err != nil {
		t.Fatalf("ListJobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("ListJobs() returned %d jobs, want 1", len(jobs))
	}
}
