package handler

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/otalab/spaces/dao/model"
	"github.com/otalab/spaces/dao/query"
	"github.com/otalab/spaces/internal/payload"
	"github.com/otalab/spaces/internal/resputil"
	"github.com/otalab/spaces/internal/util"
	"github.com/otalab/spaces/pkg/logutils"
	"github.com/otalab/spaces/pkg/objstore"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewUploadMgr)
}

// MaxUploadSize caps presigned uploads at 5 GiB.
const MaxUploadSize = 5 * 1024 * 1024 * 1024

var filenamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// allowedContentTypes is the explicit firmware-payload enum; anything else
// is rejected at presign time.
var allowedContentTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/octet-stream":     true,
	"application/x-gzip":           true,
	"application/x-tar":            true,
	"application/gzip":             true,
}

// UploadMgr is the upload protocol controller: presign, complete, list,
// serve, delete. The client PUTs the bytes straight to the store between
// presign and complete, so large firmware never transits this server.
type UploadMgr struct {
	name  string
	store objstore.Client
}

func NewUploadMgr(conf *RegisterConfig) Manager {
	return &UploadMgr{
		name:  "upload",
		store: conf.ObjectStore,
	}
}

func (mgr *UploadMgr) GetName() string { return mgr.name }

func (mgr *UploadMgr) RegisterPublic(_ *gin.RouterGroup) {}

func (mgr *UploadMgr) RegisterProtected(g *gin.RouterGroup) {
	g.POST("/spaces/:slug/upload/presign", mgr.PresignUpload)
	g.POST("/spaces/:slug/upload/complete", mgr.CompleteUpload)
	g.GET("/spaces/:slug/files", mgr.ListFiles)
	g.GET("/spaces/:slug/files/:id", mgr.GetFile)
	g.GET("/spaces/:slug/files/:id/download", mgr.DownloadFile)
	g.DELETE("/spaces/:slug/files/:id", mgr.DeleteFile)
}

func (mgr *UploadMgr) RegisterAdmin(_ *gin.RouterGroup) {}

// resolveSpace maps the slug to an active space and checks membership.
// On failure it has already written the response.
func (mgr *UploadMgr) resolveSpace(c *gin.Context) (*model.Space, util.JWTMessage, bool) {
	token := util.GetToken(c)
	slug := c.Param("slug")

	space, err := query.GetSpaceBySlug(c, slug)
	if err != nil {
		resputil.NotFoundError(c, "Space not found")
		return nil, token, false
	}
	hasAccess, err := query.HasSpaceAccess(c, token.UserID, slug)
	if err != nil {
		logutils.Log.Errorf("check space access for %s: %v", slug, err)
		resputil.Error(c, "Failed to check space access", resputil.NotSpecified)
		return nil, token, false
	}
	if !hasAccess {
		resputil.ForbiddenError(c, "You don't have access to this space")
		return nil, token, false
	}
	return space, token, true
}

type PresignReq struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType" binding:"required"`
	FileSize    int64  `json:"fileSize" binding:"required"`
}

func validatePresign(req *PresignReq) string {
	if len(req.Filename) > 255 {
		return "filename: must be at most 255 characters"
	}
	if !filenamePattern.MatchString(req.Filename) {
		return "filename: contains invalid characters"
	}
	if !allowedContentTypes[req.ContentType] {
		return fmt.Sprintf("contentType: %q is not an accepted firmware content type", req.ContentType)
	}
	if req.FileSize <= 0 {
		return "fileSize: must be greater than 0"
	}
	if req.FileSize > MaxUploadSize {
		return "fileSize: exceeds the 5GB limit"
	}
	return ""
}

type PresignResp struct {
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	ExpiresIn int    `json:"expiresIn"`
}

// PresignUpload godoc
// @Summary Issue a presigned upload URL
// @Description Phase 1 of the upload protocol: validate the request and hand the client a time-boxed PUT URL
// @Tags Upload
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param req body PresignReq true "upload intent"
// @Success 200 {object} resputil.Response[PresignResp] "presigned PUT URL"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/upload/presign [post]
func (mgr *UploadMgr) PresignUpload(c *gin.Context) {
	space, token, ok := mgr.resolveSpace(c)
	if !ok {
		return
	}
	canUpload, err := query.HasSpacePermission(c, space.ID, token.UserID, model.ActionUpload)
	if err != nil {
		resputil.Error(c, "Failed to check permission", resputil.NotSpecified)
		return
	}
	if !canUpload {
		resputil.ForbiddenError(c, "You do not have permission to upload files")
		return
	}

	var req PresignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if msg := validatePresign(&req); msg != "" {
		resputil.BadRequestError(c, msg)
		return
	}

	key := objstore.GenerateKey(space.Slug, req.Filename)
	presigned, err := mgr.store.PresignUpload(c, key, req.Filename, req.ContentType, space.Slug)
	if err != nil {
		logutils.Log.Errorf("presign upload for space %s: %v", space.Slug, err)
		resputil.Error(c, "Failed to generate upload URL", resputil.NotSpecified)
		return
	}
	resputil.Success(c, PresignResp{
		UploadURL: presigned.URL,
		S3Key:     presigned.Key,
		ExpiresIn: presigned.ExpiresIn,
	})
}

type CompleteReq struct {
	S3Key       string  `json:"s3Key" binding:"required"`
	Filename    string  `json:"filename" binding:"required"`
	FileSize    int64   `json:"fileSize" binding:"required"`
	ContentType string  `json:"contentType" binding:"required"`
	MD5Hash     *string `json:"md5Hash"`
	Description *string `json:"description"`
	Changelog   *string `json:"changelog"`
	Version     *string `json:"version"`
}

func validateComplete(req *CompleteReq) string {
	if len(req.S3Key) > 512 {
		return "s3Key: too long"
	}
	if len(req.Filename) > 255 {
		return "filename: must be at most 255 characters"
	}
	if req.FileSize <= 0 {
		return "fileSize: must be greater than 0"
	}
	if req.MD5Hash != nil && !objstore.ValidMD5(*req.MD5Hash) {
		return "md5Hash: must be 32 lowercase hex characters"
	}
	if req.Description != nil && len(*req.Description) > 1000 {
		return "description: must be at most 1000 characters"
	}
	if req.Changelog != nil && len(*req.Changelog) > 5000 {
		return "changelog: must be at most 5000 characters"
	}
	if req.Version != nil && len(*req.Version) > 50 {
		return "version: must be at most 50 characters"
	}
	return ""
}

type UploadSummary struct {
	ID         uint      `json:"id"`
	Filename   string    `json:"filename"`
	Version    *string   `json:"version"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type CompleteResp struct {
	Message string        `json:"message"`
	Upload  UploadSummary `json:"upload"`
}

// CompleteUpload godoc
// @Summary Record a finished upload
// @Description Phase 3 of the upload protocol: verify the key belongs to the space, probe the store, write the registry row
// @Tags Upload
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param req body CompleteReq true "completion record"
// @Success 201 {object} resputil.Response[CompleteResp] "created record summary"
// @Failure 400 {object} resputil.Response[any] "key outside the space or validation error"
// @Failure 404 {object} resputil.Response[any] "object absent from the store"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/upload/complete [post]
func (mgr *UploadMgr) CompleteUpload(c *gin.Context) {
	space, token, ok := mgr.resolveSpace(c)
	if !ok {
		return
	}

	var req CompleteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if msg := validateComplete(&req); msg != "" {
		resputil.BadRequestError(c, msg)
		return
	}

	// The sole gate against registering a key presigned for another
	// tenant. The check includes the trailing separator, so a slug that
	// lexically extends ours cannot slip through.
	if !objstore.BelongsToSpace(req.S3Key, space.Slug) {
		resputil.BadRequestError(c, "Invalid S3 key for this space")
		return
	}

	// A retried completion for an already-registered key is answered with
	// the existing record instead of a duplicate row or an error.
	existing, err := query.GetUploadByKey(c, req.S3Key)
	if err != nil {
		resputil.Error(c, "Failed to check existing upload", resputil.NotSpecified)
		return
	}
	if existing != nil {
		if existing.SpaceID != space.ID {
			resputil.BadRequestError(c, "Invalid S3 key for this space")
			return
		}
		resputil.Success(c, CompleteResp{
			Message: "Upload already recorded",
			Upload:  summarize(existing),
		})
		return
	}

	exists, err := mgr.store.Exists(c, req.S3Key)
	if err != nil {
		logutils.Log.Errorf("probe %s: %v", req.S3Key, err)
		resputil.Error(c, "Failed to verify upload", resputil.NotSpecified)
		return
	}
	if !exists {
		resputil.NotFoundError(c, "File not found in S3. Upload may have failed.")
		return
	}

	// Audit only: mismatches are logged, not rejected.
	meta, err := mgr.store.GetMetadata(c, req.S3Key)
	if err != nil {
		logutils.Log.Errorf("metadata %s: %v", req.S3Key, err)
		resputil.Error(c, "Failed to verify upload", resputil.NotSpecified)
		return
	}
	if meta.Size != req.FileSize {
		logutils.Log.Warnf("upload %s: store reports %d bytes, caller reported %d", req.S3Key, meta.Size, req.FileSize)
	}

	upload := &model.Upload{
		SpaceID:     space.ID,
		Filename:    req.Filename,
		S3Key:       req.S3Key,
		FileSize:    req.FileSize,
		ContentType: req.ContentType,
		MD5Hash:     req.MD5Hash,
		Description: req.Description,
		Changelog:   req.Changelog,
		Version:     req.Version,
		UploadedBy:  token.UserID,
		UploadedAt:  time.Now(),
	}
	if err := query.CreateUpload(c, upload); err != nil {
		// A racing retry may have inserted the same key between the lookup
		// and the insert; the unique index catches it and the answer is
		// the same idempotent one.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if existing, lookupErr := query.GetUploadByKey(c, req.S3Key); lookupErr == nil && existing != nil {
				resputil.Success(c, CompleteResp{
					Message: "Upload already recorded",
					Upload:  summarize(existing),
				})
				return
			}
		}
		logutils.Log.Errorf("create upload %s: %v", req.S3Key, err)
		resputil.Error(c, "Failed to complete upload", resputil.NotSpecified)
		return
	}

	resputil.Created(c, CompleteResp{
		Message: "Upload recorded successfully",
		Upload:  summarize(upload),
	})
}

func summarize(upload *model.Upload) UploadSummary {
	return UploadSummary{
		ID:         upload.ID,
		Filename:   upload.Filename,
		Version:    upload.Version,
		UploadedAt: upload.UploadedAt,
	}
}

type UploaderResp struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type FileResp struct {
	ID          uint         `json:"id"`
	Filename    string       `json:"filename"`
	S3Key       string       `json:"s3Key"`
	FileSize    int64        `json:"fileSize"`
	ContentType string       `json:"contentType"`
	MD5Hash     *string      `json:"md5Hash"`
	Description *string      `json:"description"`
	Changelog   *string      `json:"changelog"`
	Version     *string      `json:"version"`
	UploadedBy  UploaderResp `json:"uploadedBy"`
	UploadedAt  time.Time    `json:"uploadedAt"`
}

type SpaceSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type FileListResp struct {
	Space      SpaceSummary       `json:"space"`
	Files      []FileResp         `json:"files"`
	Pagination payload.Pagination `json:"pagination"`
}

func validateListQuery(q *payload.FileListQuery) string {
	if q.Page < 1 {
		return "page: must be at least 1"
	}
	if q.Limit < 1 || q.Limit > 100 {
		return "limit: must be between 1 and 100"
	}
	if len(q.Search) > 100 {
		return "search: must be at most 100 characters"
	}
	switch q.SortBy {
	case "uploadedAt", "filename", "fileSize":
	default:
		return "sortBy: must be one of uploadedAt, filename, fileSize"
	}
	switch payload.Order(q.SortOrder) {
	case payload.Asc, payload.Desc:
	default:
		return "sortOrder: must be asc or desc"
	}
	return ""
}

// ListFiles godoc
// @Summary List a space's uploads
// @Description Paginated, searchable, sortable upload listing with uploader identity
// @Tags Upload
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param q query payload.FileListQuery false "list controls"
// @Success 200 {object} resputil.Response[FileListResp] "files and pagination"
// @Failure 400 {object} resputil.Response[any] "Request parameter error"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/files [get]
func (mgr *UploadMgr) ListFiles(c *gin.Context) {
	space, _, ok := mgr.resolveSpace(c)
	if !ok {
		return
	}

	var listQuery payload.FileListQuery
	if err := c.ShouldBindQuery(&listQuery); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}
	if msg := validateListQuery(&listQuery); msg != "" {
		resputil.BadRequestError(c, msg)
		return
	}

	result, err := query.ListSpaceUploads(c, space.ID, query.UploadListParams{
		Page:      listQuery.Page,
		Limit:     listQuery.Limit,
		Search:    listQuery.Search,
		SortBy:    listQuery.SortBy,
		SortOrder: listQuery.SortOrder,
	})
	if err != nil {
		logutils.Log.Errorf("list uploads for space %s: %v", space.Slug, err)
		resputil.Error(c, "Failed to fetch files", resputil.NotSpecified)
		return
	}

	files := make([]FileResp, 0, len(result.Uploads))
	uploaders := make(map[uint]UploaderResp)
	for i := range result.Uploads {
		resp, err := mgr.generateFileResponse(c, &result.Uploads[i], uploaders)
		if err != nil {
			resputil.Error(c, "Failed to resolve uploader", resputil.NotSpecified)
			return
		}
		files = append(files, resp)
	}

	resputil.Success(c, FileListResp{
		Space: SpaceSummary{ID: space.ID, Name: space.Name, Slug: space.Slug},
		Files: files,
		Pagination: payload.Pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
		},
	})
}

func (mgr *UploadMgr) generateFileResponse(c *gin.Context, upload *model.Upload, cache map[uint]UploaderResp) (FileResp, error) {
	uploader, ok := cache[upload.UploadedBy]
	if !ok {
		user, err := query.GetUserByID(c, upload.UploadedBy)
		if err != nil {
			return FileResp{}, err
		}
		uploader = UploaderResp{ID: user.ID, Name: user.Name, Email: user.Email}
		cache[upload.UploadedBy] = uploader
	}
	return FileResp{
		ID:          upload.ID,
		Filename:    upload.Filename,
		S3Key:       upload.S3Key,
		FileSize:    upload.FileSize,
		ContentType: upload.ContentType,
		MD5Hash:     upload.MD5Hash,
		Description: upload.Description,
		Changelog:   upload.Changelog,
		Version:     upload.Version,
		UploadedBy:  uploader,
		UploadedAt:  upload.UploadedAt,
	}, nil
}

// lookupFile resolves the :id path segment within the space; cross-space
// ids read as not found, never as another tenant's file.
func (mgr *UploadMgr) lookupFile(c *gin.Context, space *model.Space) (*model.Upload, bool) {
	var req struct {
		ID uint `uri:"id" binding:"required"`
	}
	if err := c.ShouldBindUri(&req); err != nil {
		resputil.BadRequestError(c, "Invalid upload ID")
		return nil, false
	}
	upload, err := query.GetUploadByID(c, req.ID)
	if err != nil {
		resputil.NotFoundError(c, "File not found")
		return nil, false
	}
	if upload.SpaceID != space.ID {
		resputil.NotFoundError(c, "File not found in this space")
		return nil, false
	}
	return upload, true
}

// GetFile godoc
// @Summary Get one upload's details
// @Tags Upload
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param id path int true "upload id"
// @Success 200 {object} resputil.Response[FileResp] "upload details"
// @Failure 404 {object} resputil.Response[any] "file not in this space"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/files/{id} [get]
func (mgr *UploadMgr) GetFile(c *gin.Context) {
	space, _, ok := mgr.resolveSpace(c)
	if !ok {
		return
	}
	upload, ok := mgr.lookupFile(c, space)
	if !ok {
		return
	}
	resp, err := mgr.generateFileResponse(c, upload, map[uint]UploaderResp{})
	if err != nil {
		resputil.Error(c, "Failed to resolve uploader", resputil.NotSpecified)
		return
	}
	resputil.Success(c, resp)
}

type DownloadResp struct {
	DownloadURL string `json:"downloadUrl"`
	ExpiresIn   int    `json:"expiresIn"`
	Filename    string `json:"filename"`
}

// DownloadFile godoc
// @Summary Issue a presigned download URL
// @Tags Upload
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param id path int true "upload id"
// @Success 200 {object} resputil.Response[DownloadResp] "presigned GET URL"
// @Failure 404 {object} resputil.Response[any] "file not in this space"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/files/{id}/download [get]
func (mgr *UploadMgr) DownloadFile(c *gin.Context) {
	space, _, ok := mgr.resolveSpace(c)
	if !ok {
		return
	}
	upload, ok := mgr.lookupFile(c, space)
	if !ok {
		return
	}
	url, err := mgr.store.PresignDownload(c, upload.S3Key, upload.Filename)
	if err != nil {
		logutils.Log.Errorf("presign download %s: %v", upload.S3Key, err)
		resputil.Error(c, "Failed to generate download URL", resputil.NotSpecified)
		return
	}
	resputil.Success(c, DownloadResp{
		DownloadURL: url,
		ExpiresIn:   objstore.PresignExpirySeconds,
		Filename:    upload.Filename,
	})
}

// DeleteFile godoc
// @Summary Delete an upload record
// @Description Removes the metadata row; the stored object is reclaimed by the reconciliation sweep
// @Tags Upload
// @Accept json
// @Produce json
// @Security Bearer
// @Param slug path string true "space slug"
// @Param id path int true "upload id"
// @Success 200 {object} resputil.Response[gin.H] "deletion message"
// @Failure 403 {object} resputil.Response[any] "missing delete permission"
// @Failure 404 {object} resputil.Response[any] "file not in this space"
// @Failure 500 {object} resputil.Response[any] "Other errors"
// @Router /api/spaces/{slug}/files/{id} [delete]
func (mgr *UploadMgr) DeleteFile(c *gin.Context) {
	space, token, ok := mgr.resolveSpace(c)
	if !ok {
		return
	}
	canDelete, err := query.HasSpacePermission(c, space.ID, token.UserID, model.ActionDelete)
	if err != nil {
		resputil.Error(c, "Failed to check permission", resputil.NotSpecified)
		return
	}
	if !canDelete {
		resputil.ForbiddenError(c, "You do not have permission to delete files")
		return
	}
	upload, ok := mgr.lookupFile(c, space)
	if !ok {
		return
	}
	if err := query.DeleteUpload(c, upload.ID); err != nil {
		logutils.Log.Errorf("delete upload %d: %v", upload.ID, err)
		resputil.Error(c, "Failed to delete file", resputil.NotSpecified)
		return
	}
	resputil.Success(c, gin.H{"message": "File deleted successfully"})
}
