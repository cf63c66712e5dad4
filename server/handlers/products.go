package handlers

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"importserver/catalog"
	"importserver/database"
	apperrors "importserver/server/errors"
	"importserver/server/services"
)

// ProductsHandler обработчик для работы с каталогом импортированных товаров
type ProductsHandler struct {
	baseHandler    *BaseHandler
	catalogService *services.CatalogService
}

// NewProductsHandler создает новый обработчик каталога товаров
func NewProductsHandler(
	baseHandler *BaseHandler,
	catalogService *services.CatalogService,
) *ProductsHandler {
	return &ProductsHandler{
		baseHandler:    baseHandler,
		catalogService: catalogService,
	}
}

// ProductListResponse структура ответа для списка товаров
type ProductListResponse struct {
	Products []catalog.Product `json:"products"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// ProductResponse структура ответа для одного товара
type ProductResponse struct {
	Product *catalog.Product `json:"product"`
}

// ProductStatsResponse структура ответа для сводки каталога
type ProductStatsResponse struct {
	Stats *database.CatalogStats `json:"stats"`
}

// ProductDeleteResponse структура ответа при удалении товара
type ProductDeleteResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// PublishRequest тело запроса смены публикации
type PublishRequest struct {
	Published *bool `json:"published"`
}

// ErrorResponse структура ошибки
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// parseProductFilter собирает фильтр каталога из query-параметров
func parseProductFilter(c *gin.Context) (database.ProductFilter, error) {
	filter := database.ProductFilter{
		Category:     c.Query("category"),
		PetType:      c.Query("pet_type"),
		EnrichStatus: c.Query("enrich_status"),
		ImageStatus:  c.Query("image_status"),
		Source:       c.Query("source"),
		Search:       c.Query("search"),
	}

	if published := c.Query("published"); published != "" {
		value, err := strconv.ParseBool(published)
		if err != nil {
			return filter, apperrors.NewValidationError("неверный формат published", err)
		}
		filter.OnlyPublished = value
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return filter, apperrors.NewValidationError("неверный формат limit", err)
		}
		filter.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return filter, apperrors.NewValidationError("неверный формат offset", err)
		}
		filter.Offset = offset
	}

	return filter, nil
}

// HandleListProductsGin обработчик списка товаров каталога для Gin
// @Summary Получить список товаров
// @Description Возвращает страницу каталога с фильтрами по категории, типу питомца, статусам обогащения и изображений
// @Tags products
// @Accept json
// @Produce json
// @Param category query string false "Категория товара"
// @Param pet_type query string false "Тип питомца (cat, dog, universal)"
// @Param enrich_status query string false "Статус обогащения"
// @Param image_status query string false "Статус изображений"
// @Param source query string false "Источник товара"
// @Param search query string false "Подстрока названия"
// @Param published query bool false "Только опубликованные (true)"
// @Param limit query int false "Размер страницы (по умолчанию 100, максимум 500)"
// @Param offset query int false "Смещение страницы"
// @Success 200 {object} ProductListResponse "Страница каталога"
// @Failure 400 {object} ErrorResponse "Неверные параметры фильтра"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products [get]
func (h *ProductsHandler) HandleListProductsGin(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		appErr := apperrors.WrapError(err, "неверные параметры фильтра")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	products, total, err := h.catalogService.ListProducts(filter)
	if err != nil {
		appErr := apperrors.WrapError(err, "не удалось получить список товаров")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	// Пустая страница отдается как [], а не null
	if products == nil {
		products = []catalog.Product{}
	}

	SendJSONResponse(c, http.StatusOK, ProductListResponse{
		Products: products,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// HandleProductStatsGin обработчик сводки каталога для Gin
// @Summary Получить статистику каталога
// @Description Возвращает количество товаров по статусам обогащения, изображений и источникам
// @Tags products
// @Accept json
// @Produce json
// @Success 200 {object} ProductStatsResponse "Сводка каталога"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products/stats [get]
func (h *ProductsHandler) HandleProductStatsGin(c *gin.Context) {
	stats, err := h.catalogService.GetStats()
	if err != nil {
		appErr := apperrors.WrapError(err, "не удалось собрать статистику каталога")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	SendJSONResponse(c, http.StatusOK, ProductStatsResponse{Stats: stats})
}

// HandleExportProductsGin обработчик выгрузки каталога для Gin
// @Summary Экспортировать каталог
// @Description Выгружает каталог под фильтром в JSON, CSV или XLSX файл
// @Tags products
// @Accept json
// @Produce octet-stream
// @Param format query string false "Формат выгрузки: json, csv, xlsx (по умолчанию json)"
// @Param category query string false "Категория товара"
// @Param pet_type query string false "Тип питомца"
// @Param published query bool false "Только опубликованные (true)"
// @Success 200 {file} file "Файл выгрузки"
// @Failure 400 {object} ErrorResponse "Неверные параметры"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products/export [get]
func (h *ProductsHandler) HandleExportProductsGin(c *gin.Context) {
	filter, err := parseProductFilter(c)
	if err != nil {
		appErr := apperrors.WrapError(err, "неверные параметры фильтра")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	formats := map[string]catalog.ExportFormat{
		"json":  catalog.FormatJSON,
		"csv":   catalog.FormatCSV,
		"xlsx":  catalog.FormatExcel,
		"excel": catalog.FormatExcel,
	}
	formatStr := c.DefaultQuery("format", "json")
	if err := ValidateEnumParam(formatStr, "format", []string{"json", "csv", "xlsx", "excel"}, false); err != nil {
		SendJSONError(c, http.StatusBadRequest, err.Error())
		return
	}
	format := formats[strings.ToLower(formatStr)]

	path, err := h.catalogService.ExportProducts(filter, format)
	if err != nil {
		appErr := apperrors.WrapError(err, "не удалось выгрузить каталог")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}
	// Выгрузка собирается во временный файл и после отдачи не нужна
	defer os.Remove(path)

	contentTypes := map[catalog.ExportFormat]string{
		catalog.FormatJSON:  "application/json; charset=utf-8",
		catalog.FormatCSV:   "text/csv; charset=utf-8",
		catalog.FormatExcel: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}

	ext := "json"
	switch format {
	case catalog.FormatCSV:
		ext = "csv"
	case catalog.FormatExcel:
		ext = "xlsx"
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("catalog_export_%s.%s", timestamp, ext)

	c.Header("Content-Type", contentTypes[format])
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.File(path)
}

// HandleGetProductGin обработчик карточки товара для Gin
// @Summary Получить товар
// @Description Возвращает карточку товара по внутреннему идентификатору
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Внутренний идентификатор товара"
// @Success 200 {object} ProductResponse "Карточка товара"
// @Failure 404 {object} ErrorResponse "Товар не найден"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products/{id} [get]
func (h *ProductsHandler) HandleGetProductGin(c *gin.Context) {
	id := c.Param("id")

	product, err := h.catalogService.GetProduct(id)
	if err != nil {
		appErr := apperrors.WrapError(err, "не удалось получить товар")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	SendJSONResponse(c, http.StatusOK, ProductResponse{Product: product})
}

// HandleDeleteProductGin обработчик удаления товара для Gin
// @Summary Удалить товар
// @Description Удаляет товар из каталога вместе с вариантами
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Внутренний идентификатор товара"
// @Success 200 {object} ProductDeleteResponse "Товар удален"
// @Failure 404 {object} ErrorResponse "Товар не найден"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products/{id} [delete]
func (h *ProductsHandler) HandleDeleteProductGin(c *gin.Context) {
	id := c.Param("id")

	if err := h.catalogService.DeleteProduct(id); err != nil {
		appErr := apperrors.WrapError(err, "не удалось удалить товар")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	SendJSONResponse(c, http.StatusOK, ProductDeleteResponse{Status: "deleted", ID: id})
}

// HandlePublishProductGin обработчик публикации товара для Gin
// @Summary Опубликовать или снять с публикации товар
// @Description Меняет флаг публикации товара. Без тела запроса товар публикуется
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "Внутренний идентификатор товара"
// @Param request body PublishRequest false "Целевое состояние публикации"
// @Success 200 {object} ProductResponse "Обновленная карточка товара"
// @Failure 404 {object} ErrorResponse "Товар не найден"
// @Failure 500 {object} ErrorResponse "Внутренняя ошибка сервера"
// @Router /api/products/{id}/publish [post]
func (h *ProductsHandler) HandlePublishProductGin(c *gin.Context) {
	id := c.Param("id")

	// Тело опционально: без него товар публикуется
	published := true
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Published != nil {
		published = *req.Published
	}

	product, err := h.catalogService.SetPublished(id, published)
	if err != nil {
		appErr := apperrors.WrapError(err, "не удалось изменить публикацию")
		SendJSONError(c, appErr.StatusCode(), appErr.UserMessage())
		return
	}

	SendJSONResponse(c, http.StatusOK, ProductResponse{Product: product})
}
