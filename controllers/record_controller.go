package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/metrics"
	"github.com/cppla/hongbao/models"
	"github.com/cppla/hongbao/stats"
	"github.com/cppla/hongbao/store"
	"github.com/cppla/hongbao/utils"
)

// RecordController serves the owner-scoped red packet endpoints.
type RecordController struct {
	records store.RecordStore
	cache   *utils.Cache
}

// NewRecordController creates a RecordController. cache may be nil.
func NewRecordController(records store.RecordStore, cache *utils.Cache) *RecordController {
	RegisterValidators()
	return &RecordController{records: records, cache: cache}
}

type createRecordRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
	// limits mirror store.MaxSourceLen and store.MaxNoteLen
	Source string `json:"source" binding:"max=64"`
	Note   string `json:"note" binding:"max=255"`
}

// List returns the caller's records, newest first.
func (r *RecordController) List(ctx *gin.Context) {
	owner, year, ok := r.scope(ctx)
	if !ok {
		return
	}
	records, err := r.records.List(ctx.Request.Context(), owner, year)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, records)
}

// Create logs a new red packet for the caller.
func (r *RecordController) Create(ctx *gin.Context) {
	owner, ok := ownerOrAbort(ctx)
	if !ok {
		return
	}
	var req createRecordRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Fail(ctx, invalidPayload(err))
		return
	}

	rec, err := r.records.Add(ctx.Request.Context(), owner, *req.Amount, req.Source, req.Note)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	metrics.RecordsCreated.Inc()
	r.invalidate(ctx)
	utils.Success(ctx, rec)
}

// Delete removes one record. Missing and foreign records both answer 404.
func (r *RecordController) Delete(ctx *gin.Context) {
	owner, ok := ownerOrAbort(ctx)
	if !ok {
		return
	}
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	if err := r.records.Remove(ctx.Request.Context(), id, owner); err != nil {
		utils.Fail(ctx, err)
		return
	}
	metrics.RecordsDeleted.Inc()
	r.invalidate(ctx)
	utils.Success(ctx, gin.H{"deleted": 1})
}

// DeleteAll clears the caller's records, or only one year with ?year=.
func (r *RecordController) DeleteAll(ctx *gin.Context) {
	owner, year, ok := r.scope(ctx)
	if !ok {
		return
	}
	var (
		n   int64
		err error
	)
	if year != nil {
		n, err = r.records.RemoveYear(ctx.Request.Context(), owner, *year)
	} else {
		n, err = r.records.RemoveAll(ctx.Request.Context(), owner)
	}
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	metrics.RecordsDeleted.Add(float64(n))
	if n > 0 {
		r.invalidate(ctx)
	}
	utils.Success(ctx, gin.H{"deleted": n})
}

// Total returns the sum of the caller's amounts.
func (r *RecordController) Total(ctx *gin.Context) {
	owner, year, ok := r.scope(ctx)
	if !ok {
		return
	}
	total, err := r.records.Total(ctx.Request.Context(), owner, year)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"total": total})
}

// Years lists the years the caller has records in.
func (r *RecordController) Years(ctx *gin.Context) {
	owner, ok := ownerOrAbort(ctx)
	if !ok {
		return
	}
	years, err := r.records.Years(ctx.Request.Context(), owner)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, years)
}

// Distribution groups the caller's records by amount.
func (r *RecordController) Distribution(ctx *gin.Context) {
	r.aggregate(ctx, func(recs []models.RedPacket) interface{} { return stats.Distribution(recs) })
}

// Sources ranks the caller's income by source.
func (r *RecordController) Sources(ctx *gin.Context) {
	r.aggregate(ctx, func(recs []models.RedPacket) interface{} { return stats.RankBySource(recs) })
}

func (r *RecordController) aggregate(ctx *gin.Context, reduce func([]models.RedPacket) interface{}) {
	owner, year, ok := r.scope(ctx)
	if !ok {
		return
	}
	records, err := r.records.List(ctx.Request.Context(), owner, year)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, reduce(records))
}

// scope reads the owner and the optional year filter, answering the error itself.
func (r *RecordController) scope(ctx *gin.Context) (uint, *int, bool) {
	owner, ok := ownerOrAbort(ctx)
	if !ok {
		return 0, nil, false
	}
	year, err := parseYear(ctx)
	if err != nil {
		utils.Fail(ctx, err)
		return 0, nil, false
	}
	return owner, year, true
}

func (r *RecordController) invalidate(ctx *gin.Context) {
	r.cache.InvalidateByPrefix(ctx.Request.Context(), leaderboardCachePrefix)
}

func ownerOrAbort(ctx *gin.Context) (uint, bool) {
	owner, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, apperr.CodeMissingCredential, "unauthorized")
		return 0, false
	}
	return owner, true
}
