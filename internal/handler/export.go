package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/AfterPacket/secure-blog-cms/internal/storage"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// ExportHandler streams the full post set as CSV or XLSX.
type ExportHandler struct {
	Store *storage.PostStore
}

func NewExportHandler(store *storage.PostStore) *ExportHandler {
	return &ExportHandler{Store: store}
}

var exportHeaders = []string{
	"ID", "Title", "Slug", "Status", "Visibility", "Author",
	"Categories", "Tags", "Views", "Created", "Updated",
}

// ExportCSV writes all posts as a CSV attachment.
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	posts, err := h.Store.All("all", "created_at", "DESC")
	if err != nil {
		storageError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"posts_%s.csv\"",
		time.Now().Format("20060102")))

	// UTF-8 BOM so spreadsheet apps detect the encoding.
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write(exportHeaders)
	for _, p := range posts {
		writer.Write([]string{
			p.ID,
			p.Title,
			p.Slug,
			p.Status,
			p.Visibility,
			p.Author,
			joinSlugs(p.Categories),
			p.Tags,
			strconv.FormatInt(p.Views, 10),
			time.Unix(p.CreatedAt, 0).Format("2006-01-02 15:04:05"),
			time.Unix(p.UpdatedAt, 0).Format("2006-01-02 15:04:05"),
		})
	}
}

// ExportXLSX writes all posts as an Excel workbook.
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	posts, err := h.Store.All("all", "created_at", "DESC")
	if err != nil {
		storageError(c, err)
		return
	}

	f := excelize.NewFile()
	sheetName := "Posts"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for idx, p := range posts {
		row := idx + 2
		values := []interface{}{
			p.ID, p.Title, p.Slug, p.Status, p.Visibility, p.Author,
			joinSlugs(p.Categories), p.Tags, p.Views,
			time.Unix(p.CreatedAt, 0).Format("2006-01-02 15:04:05"),
			time.Unix(p.UpdatedAt, 0).Format("2006-01-02 15:04:05"),
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 22)
	f.SetColWidth(sheetName, "B", "B", 40)
	f.SetColWidth(sheetName, "C", "C", 30)
	f.SetColWidth(sheetName, "J", "K", 20)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"posts_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
	}
}

func joinSlugs(slugs []string) string {
	return strings.Join(slugs, ", ")
}
