package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"importserver/catalog"
	"importserver/database"
	apperrors "importserver/server/errors"
	"importserver/supplier"
)

// Ограничения поискового импорта: сколько позиций собирается из выдачи
// каталога поставщика, когда оператор не задал лимит
const (
	defaultSearchLimit = 100
	maxSearchLimit     = 1000
	searchPageSize     = 50
)

// startImportJob регистрирует задание импорта и запускает его в фоне.
// Возвращает созданную запись задания; ошибка конфликта означает, что
// другое задание еще идет
func (s *Server) startImportJob(req ImportStartRequest) (*database.ImportJob, error) {
	inputs := collectImportInputs(req.Inputs)
	query := strings.TrimSpace(req.Query)

	if len(inputs) == 0 && query == "" {
		return nil, apperrors.NewValidationError("не переданы ни идентификаторы, ни поисковый запрос", nil)
	}

	job, err := s.importService.Begin(database.JobTypeImport, len(inputs))
	if err != nil {
		return nil, err
	}
	s.metricsCollector.RecordImportJobStart()

	ctx, cancel := context.WithCancel(context.Background())
	s.importService.BindCancel(cancel)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				LogImportPanic(job.JobID, "", rec, string(debug.Stack()))
				s.logErrorf("Критическая ошибка задания %s: %v", job.JobID, rec)
				s.importService.Finish(database.JobStatusFailed, fmt.Sprintf("panic: %v", rec))
			}
		}()
		s.runImportJob(ctx, job, query, req.MaxItems, inputs)
	}()

	return job, nil
}

// runImportJob основной цикл задания импорта: собирает список позиций,
// раздает их воркерам и закрывает задание терминальным статусом
func (s *Server) runImportJob(ctx context.Context, job *database.ImportJob, query string, maxItems int, inputs []string) {
	jobID := job.JobID

	if err := s.importService.MarkRunning(jobID); err != nil {
		s.logWarnf("Не удалось отметить запуск задания %s: %v", jobID, err)
	}

	// Поисковый импорт сначала собирает идентификаторы из выдачи поставщика
	if len(inputs) == 0 {
		found, err := s.searchImportInputs(ctx, query, maxItems)
		if err != nil {
			s.logErrorf("Поиск по каталогу поставщика не удался: %v", err)
			s.importService.Finish(database.JobStatusFailed, fmt.Sprintf("поиск не удался: %v", err))
			return
		}
		inputs = found
		s.importService.SetTotal(len(inputs))
	}

	if len(inputs) == 0 {
		s.logWarnf("Поиск %q не вернул ни одного товара, импортировать нечего", query)
		s.importService.Finish(database.JobStatusCompleted, "нет товаров для импорта")
		return
	}

	LogImportStart(jobID, job.JobType, len(inputs))
	s.logInfof("🔍 Запущен импорт %s: %d позиций", jobID, len(inputs))

	stopRequested := s.importService.CreateStopCheck(ctx, jobID)

	workers := s.config.JobWorkers
	if workers < 1 {
		workers = 1
	}

	// Семафор для ограничения параллелизма
	semaphore := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, input := range inputs {
		if stopRequested() {
			s.logWarnf("Задание %s остановлено, оставшиеся позиции пропущены", jobID)
			break
		}

		semaphore <- struct{}{}
		wg.Add(1)

		go func(input string) {
			defer func() {
				<-semaphore
				wg.Done()

				if rec := recover(); rec != nil {
					LogImportPanic(jobID, input, rec, string(debug.Stack()))
					s.recordImportItem(jobID, false)
				}
			}()

			ok := s.processImportItem(ctx, jobID, input)
			s.recordImportItem(jobID, ok)
		}(input)
	}

	wg.Wait()

	s.finishJobRun(job, stopRequested())
}

// recordImportItem учитывает результат позиции и пишет чекпоинт по порогу
func (s *Server) recordImportItem(jobID string, ok bool) {
	s.metricsCollector.RecordImportItem(ok)

	processed, checkpointDue := s.importService.RecordItem(ok)
	if !checkpointDue {
		return
	}

	if err := s.importService.Checkpoint(); err != nil {
		s.logWarnf("Чекпоинт задания %s не записан: %v", jobID, err)
	}

	st := s.importService.GetStatus()
	LogImportProgress(jobID, processed, st.Total, st.Success, st.Errors)
}

// finishJobRun закрывает задание терминальным статусом по итогам прогона
func (s *Server) finishJobRun(job *database.ImportJob, stopped bool) {
	s.metricsCollector.RecordImportJobDone()

	st := s.importService.GetStatus()

	if stopped {
		LogImportStopped(job.JobID, "остановлено оператором", st.Processed)
		s.logWarnf("⚠ Задание %s остановлено: %d/%d обработано", job.JobID, st.Processed, st.Total)
		s.importService.Finish(database.JobStatusCancelled,
			fmt.Sprintf("остановлено оператором: %d/%d обработано", st.Processed, st.Total))
		return
	}

	duration := time.Since(job.StartedAt)
	LogImportComplete(job.JobID, st.Processed, st.Success, st.Errors, duration)
	s.logInfof("✓ Задание %s завершено: %d успешно, %d с ошибками за %v",
		job.JobID, st.Success, st.Errors, duration.Round(time.Second))
	s.importService.Finish(database.JobStatusCompleted,
		fmt.Sprintf("обработано %d: %d успешно, %d с ошибками", st.Processed, st.Success, st.Errors))
}

// processImportItem проводит одну позицию через полный конвейер:
// распознавание, запрос к поставщику, изображения, конвертация, гейт, запись.
// Ошибка одной позиции не влияет на остальные
func (s *Server) processImportItem(ctx context.Context, jobID, input string) bool {
	id := supplier.ResolveIdentifier(input)
	if id.Kind == supplier.KindUnrecognized {
		LogImportItemError(jobID, input, fmt.Errorf("вход не распознан: %s", id.Hint))
		s.logWarnf("✗ %q: вход не распознан (%s)", input, id.Hint)
		return false
	}

	rec, method, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		LogImportItemError(jobID, input, err)
		s.logWarnf("✗ %q: товар не получен: %v", input, err)
		return false
	}

	product, err := s.buildProduct(ctx, rec)
	if err != nil {
		LogImportItemError(jobID, input, err)
		s.logWarnf("✗ %q: конвертация не удалась: %v", input, err)
		return false
	}

	if err := s.catalogDB.UpsertProduct(product); err != nil {
		LogImportItemError(jobID, input, err)
		s.logErrorf("✗ %q: запись в каталог не удалась: %v", input, err)
		return false
	}

	Logger.Debug("Import item processed",
		"job_id", jobID,
		"input", input,
		"method", method,
		"product_id", product.ID,
		"image_status", product.ImageStatus,
		"published", product.Published)

	return true
}

// buildProduct собирает карточку каталога из записи поставщика:
// изображения, конвертация, гейт допуска, решение о публикации
func (s *Server) buildProduct(ctx context.Context, rec *supplier.Record) (*catalog.Product, error) {
	if rec == nil {
		return nil, fmt.Errorf("supplier record is nil")
	}

	imageKey := rec.Pid
	if imageKey == "" {
		imageKey = rec.ProductSku
	}

	media := s.imagePipeline.Resolve(ctx, imageKey, rec)

	product, err := s.converter.Convert(rec, media)
	if err != nil {
		return nil, err
	}

	verdict := s.gate.Check(product)
	product.PetType = verdict.PetType
	product.Eligibility = catalog.Eligibility{OK: verdict.OK, Reason: verdict.Reason}

	// Автопубликация только для допущенных товаров с пригодными изображениями
	product.Published = verdict.OK &&
		(product.ImageStatus == catalog.ImageOK || product.ImageStatus == catalog.ImagePartial)

	return product, nil
}

// importOne синхронно импортирует одну позицию; используется эндпоинтом
// единичного импорта. Возвращает записанную карточку и метод поиска,
// которым товар найден у поставщика
func (s *Server) importOne(ctx context.Context, input string) (*catalog.Product, string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, "", apperrors.NewValidationError("пустой идентификатор товара", nil)
	}

	id := supplier.ResolveIdentifier(input)
	if id.Kind == supplier.KindUnrecognized {
		return nil, "", apperrors.NewValidationError(fmt.Sprintf("вход не распознан: %s", id.Hint), nil)
	}

	rec, method, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		if supplier.IsNotFound(err) {
			return nil, "", apperrors.NewNotFoundError("товар у поставщика не найден", err)
		}
		return nil, "", apperrors.NewBadGatewayError("поставщик недоступен", err)
	}

	product, err := s.buildProduct(ctx, rec)
	if err != nil {
		return nil, "", apperrors.NewInternalError("не удалось сконвертировать товар", err)
	}

	if err := s.catalogDB.UpsertProduct(product); err != nil {
		return nil, "", apperrors.NewInternalError("не удалось записать товар в каталог", err)
	}

	s.logInfof("✓ Импортирован товар %q (%s)", product.Title, method)
	return product, method, nil
}

// searchImportInputs собирает идентификаторы товаров из выдачи каталога
// поставщика постранично, до maxItems позиций
func (s *Server) searchImportInputs(ctx context.Context, query string, maxItems int) ([]string, error) {
	if maxItems <= 0 {
		maxItems = defaultSearchLimit
	}
	if maxItems > maxSearchLimit {
		maxItems = maxSearchLimit
	}

	var pids []string
	for pageNum := 1; len(pids) < maxItems; pageNum++ {
		page, total, err := s.supplierClient.ListProducts(ctx, query, pageNum, searchPageSize)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}

		for _, rec := range page {
			pid := rec.Pid
			if pid == "" {
				pid = rec.ProductSku
			}
			if pid == "" {
				continue
			}
			pids = append(pids, pid)
			if len(pids) >= maxItems {
				break
			}
		}

		if pageNum*searchPageSize >= total {
			break
		}
	}

	return pids, nil
}

// collectImportInputs чистит список идентификаторов: трим, пустые, дубликаты
func collectImportInputs(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	inputs := make([]string, 0, len(raw))
	for _, in := range raw {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		if _, ok := seen[in]; ok {
			continue
		}
		seen[in] = struct{}{}
		inputs = append(inputs, in)
	}
	return inputs
}

// startPriceSyncJob регистрирует фоновую синхронизацию цен всего каталога
func (s *Server) startPriceSyncJob() (*database.ImportJob, error) {
	pids, err := s.catalogDB.AllSupplierPids()
	if err != nil {
		return nil, apperrors.NewInternalError("не удалось прочитать каталог", err)
	}
	if len(pids) == 0 {
		return nil, apperrors.NewValidationError("каталог пуст, синхронизировать нечего", nil)
	}

	job, err := s.importService.Begin(database.JobTypePriceSync, len(pids))
	if err != nil {
		return nil, err
	}
	s.metricsCollector.RecordImportJobStart()

	ctx, cancel := context.WithCancel(context.Background())
	s.importService.BindCancel(cancel)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				LogImportPanic(job.JobID, "", rec, string(debug.Stack()))
				s.logErrorf("Критическая ошибка синхронизации цен %s: %v", job.JobID, rec)
				s.importService.Finish(database.JobStatusFailed, fmt.Sprintf("panic: %v", rec))
			}
		}()
		s.runPriceSyncJob(ctx, job, pids)
	}()

	return job, nil
}

// runPriceSyncJob обновляет цены и остатки каталога по свежим данным
// поставщика. Позиции идут последовательно: лимитер клиента всё равно
// не пропустит больше запросов, чем разрешено
func (s *Server) runPriceSyncJob(ctx context.Context, job *database.ImportJob, pids []string) {
	jobID := job.JobID

	if err := s.importService.MarkRunning(jobID); err != nil {
		s.logWarnf("Не удалось отметить запуск задания %s: %v", jobID, err)
	}

	LogImportStart(jobID, job.JobType, len(pids))
	s.logInfof("🔍 Запущена синхронизация цен %s: %d товаров", jobID, len(pids))

	stopRequested := s.importService.CreateStopCheck(ctx, jobID)

	stopped := false
	for _, pid := range pids {
		if stopRequested() {
			stopped = true
			break
		}
		s.recordImportItem(jobID, s.syncPricesFor(ctx, jobID, pid))
	}

	s.finishJobRun(job, stopped || stopRequested())
}

// syncPricesFor обновляет цены одного товара по свежим вариантам поставщика
func (s *Server) syncPricesFor(ctx context.Context, jobID, pid string) bool {
	product, err := s.catalogDB.GetProductBySupplierPid(pid)
	if err != nil {
		LogImportItemError(jobID, pid, err)
		return false
	}
	if product == nil {
		LogImportItemError(jobID, pid, fmt.Errorf("товар исчез из каталога"))
		return false
	}

	fresh, err := s.supplierClient.ListVariants(ctx, pid)
	if err != nil {
		LogImportItemError(jobID, pid, err)
		s.logWarnf("✗ %s: варианты не получены: %v", pid, err)
		return false
	}

	// Ни один вариант не совпал — не ошибка, обновлять просто нечего
	if !s.converter.Reprice(product, fresh) {
		return true
	}

	if err := s.catalogDB.UpsertProduct(product); err != nil {
		LogImportItemError(jobID, pid, err)
		return false
	}

	return true
}
