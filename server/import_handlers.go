package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"importserver/importer"
	apperrors "importserver/server/errors"
	"importserver/server/handlers"
	"importserver/supplier"
)

// handleImportStart запускает фоновое задание импорта по списку
// идентификаторов или поисковому запросу
func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	var req ImportStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		LogError(r.Context(), err, "Failed to decode import start request")
		s.handleHTTPError(w, r, apperrors.NewValidationError("некорректное тело запроса", err))
		return
	}

	job, err := s.startImportJob(req)
	if err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	LogInfo(r.Context(), "Import job accepted", "job_id", job.JobID, "inputs", len(req.Inputs), "query", req.Query)

	s.writeJSONResponse(w, r, map[string]interface{}{
		"status": "started",
		"job":    job,
	}, http.StatusOK)
}

// handleImportSingle синхронно импортирует один товар и возвращает карточку
func (s *Server) handleImportSingle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	var req SingleImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleHTTPError(w, r, apperrors.NewValidationError("некорректное тело запроса", err))
		return
	}

	product, method, err := s.importOne(r.Context(), req.Input)
	if err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	s.writeJSONResponse(w, r, map[string]interface{}{
		"status":  "imported",
		"method":  method,
		"product": product,
	}, http.StatusOK)
}

// handleImportUpload принимает Excel файл со списком идентификаторов
// и запускает по нему задание импорта
func (s *Server) handleImportUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Парсим multipart/form-data
	err := r.ParseMultipartForm(20 << 20) // 20 MB max, список идентификаторов больше не бывает
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse form: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to get file: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	// Проверяем расширение и размер файла
	validator := handlers.NewFileValidator([]string{".xlsx", ".xls"}, 20<<20, 0)
	if err := validator.ValidateExtension(header.Filename); err != nil {
		s.handleHTTPError(w, r, err)
		return
	}
	if err := validator.ValidateSize(header.Size); err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	// Создаем временный файл
	tempDir := filepath.Join("data", "temp")
	if err := handlers.EnsureDirectory(tempDir); err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	tempFile := filepath.Join(tempDir, fmt.Sprintf("import_ids_%d_%s", time.Now().Unix(), handlers.SanitizeFilename(header.Filename)))
	outFile, err := os.Create(tempFile)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to create temp file: %v", err), http.StatusInternalServerError)
		return
	}
	defer outFile.Close()
	defer os.Remove(tempFile)

	if _, err = io.Copy(outFile, file); err != nil {
		http.Error(w, fmt.Sprintf("Failed to save file: %v", err), http.StatusInternalServerError)
		return
	}
	outFile.Close()

	inputs, err := importer.ParseIDListFile(tempFile)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse Excel file: %v", err), http.StatusBadRequest)
		return
	}
	if len(inputs) == 0 {
		http.Error(w, "File contains no product identifiers", http.StatusBadRequest)
		return
	}

	job, err := s.startImportJob(ImportStartRequest{Inputs: inputs})
	if err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	LogInfo(r.Context(), "Import job accepted from uploaded file",
		"job_id", job.JobID, "file", header.Filename, "inputs", len(inputs))

	s.writeJSONResponse(w, r, map[string]interface{}{
		"status": "started",
		"file":   header.Filename,
		"count":  len(inputs),
		"job":    job,
	}, http.StatusOK)
}

// handleImportStatus возвращает статус задания: живой прогресс для
// текущего, запись из сервисной БД для завершенных
func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	if jobID := r.URL.Query().Get("job_id"); jobID != "" {
		job, err := s.importService.JobByID(jobID)
		if err != nil {
			s.handleHTTPError(w, r, err)
			return
		}
		s.writeJSONResponse(w, r, job, http.StatusOK)
		return
	}

	status := s.importService.GetStatus()
	if status.IsRunning {
		s.writeJSONResponse(w, r, status, http.StatusOK)
		return
	}

	// Ничего не идет — отдаем последнее завершенное задание
	jobs, err := s.importService.ListJobs(1)
	if err != nil {
		s.handleHTTPError(w, r, err)
		return
	}
	if len(jobs) == 0 {
		s.writeJSONResponse(w, r, status, http.StatusOK)
		return
	}

	s.writeJSONResponse(w, r, map[string]interface{}{
		"is_running": false,
		"last_job":   jobs[0],
	}, http.StatusOK)
}

// handleImportCancel запрашивает остановку задания. Без job_id
// останавливает текущее; с job_id помечает конкретное задание
func (s *Server) handleImportCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	jobID := r.URL.Query().Get("job_id")
	if jobID == "" && r.Body != nil {
		var req struct {
			JobID string `json:"job_id"`
		}
		// Тело опционально, ошибки разбора игнорируем
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			jobID = req.JobID
		}
	}

	if jobID == "" {
		if !s.importService.Stop() {
			s.handleHTTPError(w, r, apperrors.NewConflictError("нет запущенного задания", nil))
			return
		}
		s.logWarnf("⚠ Запрошена остановка текущего задания импорта")
		s.writeJSONResponse(w, r, map[string]interface{}{
			"status":  "stopping",
			"message": "Остановка запрошена, задание завершится на ближайшей позиции",
		}, http.StatusOK)
		return
	}

	if err := s.importService.CancelJob(jobID); err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	s.logWarnf("⚠ Запрошена остановка задания %s", jobID)
	s.writeJSONResponse(w, r, map[string]interface{}{
		"status": "stopping",
		"job_id": jobID,
	}, http.StatusOK)
}

// handleImportJobs возвращает историю заданий, свежие первыми
func (s *Server) handleImportJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	jobs, err := s.importService.ListJobs(limit)
	if err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	s.writeJSONResponse(w, r, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	}, http.StatusOK)
}

// handleImportResolve показывает, как строка распознается в идентификатор
// поставщика; диагностический эндпоинт, к API поставщика не обращается
func (s *Server) handleImportResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		s.handleHTTPError(w, r, apperrors.NewValidationError("параметр input обязателен", nil))
		return
	}

	s.writeJSONResponse(w, r, supplier.ResolveIdentifier(input), http.StatusOK)
}

// handlePriceSyncStart запускает фоновую синхронизацию цен каталога
func (s *Server) handlePriceSyncStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	job, err := s.startPriceSyncJob()
	if err != nil {
		s.handleHTTPError(w, r, err)
		return
	}

	LogInfo(r.Context(), "Price sync job accepted", "job_id", job.JobID, "total", job.Total)

	s.writeJSONResponse(w, r, map[string]interface{}{
		"status": "started",
		"job":    job,
	}, http.StatusOK)
}

// handleSystemStats возвращает сводку по серверу для GUI и витрины
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	s.writeJSONResponse(w, r, s.GetServerStats(), http.StatusOK)
}

// handleSupplierStatus возвращает состояние подключения к поставщику
func (s *Server) handleSupplierStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.handleHTTPError(w, r, apperrors.NewValidationError("Метод не разрешен", nil))
		return
	}

	s.writeJSONResponse(w, r, map[string]interface{}{
		"demo_mode": s.supplierClient.IsDemo(),
		"base_url":  s.config.SupplierBaseURL,
		"breaker":   s.supplierClient.BreakerDetails(),
	}, http.StatusOK)
}
