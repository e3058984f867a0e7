package query

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
)

// UploadListParams are the validated list controls. The handler owns input
// validation; this layer only translates them into SQL.
type UploadListParams struct {
	Page      int
	Limit     int
	Search    string
	SortBy    string // uploadedAt | filename | fileSize
	SortOrder string // asc | desc
}

type UploadListResult struct {
	Uploads    []model.Upload
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// sortColumns maps API sort keys to columns. Anything outside this map was
// already rejected by validation.
var sortColumns = map[string]string{
	"uploadedAt": "uploaded_at",
	"filename":   "filename",
	"fileSize":   "file_size",
}

func CreateUpload(ctx context.Context, upload *model.Upload) error {
	return GetDB().WithContext(ctx).Create(upload).Error
}

// ListSpaceUploads pages through one space's uploads. Search matches
// filename, description or version case-insensitively.
func ListSpaceUploads(ctx context.Context, spaceID uint, params UploadListParams) (*UploadListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = 20
	}
	column, ok := sortColumns[params.SortBy]
	if !ok {
		column = "uploaded_at"
	}
	direction := "DESC"
	if params.SortOrder == "asc" {
		direction = "ASC"
	}

	base := GetDB().WithContext(ctx).Model(&model.Upload{}).Where("space_id = ?", spaceID)
	if params.Search != "" {
		pattern := "%" + strings.ToLower(params.Search) + "%"
		base = base.Where(
			"lower(filename) LIKE ? OR lower(coalesce(description, '')) LIKE ? OR lower(coalesce(version, '')) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var uploads []model.Upload
	err := base.
		Order(column + " " + direction).
		Limit(params.Limit).
		Offset((params.Page - 1) * params.Limit).
		Find(&uploads).Error
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(params.Limit) - 1) / int64(params.Limit))
	return &UploadListResult{
		Uploads:    uploads,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}, nil
}

func GetUploadByID(ctx context.Context, id uint) (*model.Upload, error) {
	var upload model.Upload
	if err := GetDB().WithContext(ctx).First(&upload, id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// GetUploadByKey looks an upload up by its object-store key; nil when the
// key was never registered.
func GetUploadByKey(ctx context.Context, key string) (*model.Upload, error) {
	var upload model.Upload
	err := GetDB().WithContext(ctx).Where("s3_key = ?", key).First(&upload).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// DeleteUpload removes the metadata row only; the stored object is
// reclaimed by the reconciliation sweep.
func DeleteUpload(ctx context.Context, id uint) error {
	return GetDB().WithContext(ctx).Delete(&model.Upload{}, id).Error
}

// ListAllKeys returns every registered object key. The reconciliation
// sweep diffs the store against this set.
func ListAllKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := GetDB().WithContext(ctx).Model(&model.Upload{}).Pluck("s3_key", &keys).Error
	return keys, err
}
