package admin

import (
	"errors"
	"strconv"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/service"

	"github.com/gin-gonic/gin"
)

// ImportInventoryCSV 导入库存卡密文件
// multipart 字段：file（CSV）、brand_id、denomination、note（可选）。
func (h *Handler) ImportInventoryCSV(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}

	brandID, err := strconv.ParseUint(c.PostForm("brand_id"), 10, 64)
	if err != nil || brandID == 0 {
		respondError(c, response.CodeBadRequest, "invalid brand_id", err)
		return
	}
	denomination, err := models.NewMoneyFromString(c.PostForm("denomination"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid denomination", err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, response.CodeBadRequest, "missing csv file", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, response.CodeBadRequest, "open csv file failed", err)
		return
	}
	defer file.Close()

	result, err := h.InventoryService.ImportCSV(file, service.ImportCSVInput{
		BrandID:      uint(brandID),
		Denomination: denomination,
		Source:       constants.InventoryBatchSourceCSV,
		Note:         c.PostForm("note"),
		CreatedBy:    &adminID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBrandNotFound):
			respondClassifiedError(c, response.CodeNotFound, err)
		case errors.Is(err, service.ErrDenominationNotConfigured):
			respondClassifiedError(c, response.CodeBadRequest, err)
		case errors.Is(err, service.ErrInventoryImportInvalid):
			respondError(c, response.CodeBadRequest, "csv payload invalid", err)
		default:
			respondError(c, response.CodeInternal, "inventory import failed", err)
		}
		return
	}

	requestLog(c).Infow("inventory imported",
		"batch_no", result.Batch.BatchNo,
		"brand_id", brandID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"admin_id", adminID,
	)
	response.Success(c, result)
}

// GetInventoryStats 查询品牌可用库存
func (h *Handler) GetInventoryStats(c *gin.Context) {
	brandID, err := strconv.ParseUint(c.Query("brand_id"), 10, 64)
	if err != nil || brandID == 0 {
		respondError(c, response.CodeBadRequest, "invalid brand_id", err)
		return
	}
	stats, err := h.InventoryService.Stats(uint(brandID))
	if err != nil {
		if errors.Is(err, service.ErrBrandNotFound) {
			respondClassifiedError(c, response.CodeNotFound, err)
			return
		}
		respondError(c, response.CodeInternal, "inventory stats failed", err)
		return
	}
	response.Success(c, stats)
}

// GetInventoryBatches 分页查询导入批次
func (h *Handler) GetInventoryBatches(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	batches, total, err := h.InventoryService.ListBatches(page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "list batches failed", err)
		return
	}
	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, batches, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
