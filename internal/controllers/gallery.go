package controllers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"game_catalogue/internal/models"
)

type GalleryServicer interface {
	List(ctx context.Context, f models.GalleryFilter) ([]models.GalleryGame, models.Pagination, error)
	Get(ctx context.Context, id int64) (*models.GalleryGame, error)
	UpdateMetadata(ctx context.Context, gameID int64, p models.MetadataPatch) (*models.GalleryMetadata, error)
	Filters(ctx context.Context) (*models.GalleryFilters, error)
	Tags(ctx context.Context) ([]models.Tag, error)
	CreateTag(ctx context.Context, t *models.Tag) (*models.Tag, error)
	AddTag(ctx context.Context, gameID, tagID int64) error
	RemoveTag(ctx context.Context, gameID, tagID int64) error
}

type AddTagRequest struct {
	TagID int64 `json:"tag_id"`
}

type GalleryController struct {
	service GalleryServicer
	log     *slog.Logger
}

func NewGalleryController(s GalleryServicer, log *slog.Logger) *GalleryController {
	return &GalleryController{service: s, log: log}
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", ErrBadRequest, name)
	}
	return n, nil
}

func galleryFilter(r *http.Request) (models.GalleryFilter, error) {
	q := r.URL.Query()
	f := models.GalleryFilter{
		Platform:   q.Get("platform"),
		Completion: q.Get("completion"),
		Genre:      q.Get("genre"),
		Region:     q.Get("region"),
		Search:     q.Get("search"),
		Sort:       q.Get("sort"),
	}

	var err error
	if f.Page, err = queryInt(r, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}

	if raw := q.Get("favorite"); raw != "" {
		fav, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("%w: favorite must be true or false", ErrBadRequest)
		}
		f.Favorite = &fav
	}

	return f, nil
}

func (c *GalleryController) List(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.List"

	f, err := galleryFilter(r)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	games, page, err := c.service.List(r.Context(), f)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{
		"data": map[string]any{
			"games":      games,
			"pagination": page,
			"filters_applied": map[string]any{
				"platform":   f.Platform,
				"completion": f.Completion,
				"favorite":   f.Favorite,
				"genre":      f.Genre,
				"region":     f.Region,
				"search":     f.Search,
				"sort":       f.Sort,
			},
		},
	})
}

func (c *GalleryController) Get(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.Get"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	game, err := c.service.Get(r.Context(), id)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"data": game})
}

func (c *GalleryController) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.UpdateMetadata"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	var patch models.MetadataPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	m, err := c.service.UpdateMetadata(r.Context(), id, patch)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"data": m})
}

func (c *GalleryController) Filters(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.Filters"

	f, err := c.service.Filters(r.Context())
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"data": f})
}

func (c *GalleryController) Tags(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.Tags"

	tags, err := c.service.Tags(r.Context())
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"data": tags})
}

func (c *GalleryController) CreateTag(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.CreateTag"

	var tag models.Tag
	if err := decodeJSON(r, &tag); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	tag.ID = 0

	res, err := c.service.CreateTag(r.Context(), &tag)
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusCreated, map[string]any{"data": res})
}

func (c *GalleryController) AddTag(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.AddTag"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	var req AddTagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	if req.TagID <= 0 {
		writeFailure(w, c.log, op, fmt.Errorf("%w: tag_id is required", ErrBadRequest))
		return
	}

	if err := c.service.AddTag(r.Context(), id, req.TagID); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"message": "Tag added"})
}

func (c *GalleryController) RemoveTag(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.gallery.RemoveTag"

	id, err := idParam(r, "id")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}
	tagID, err := idParam(r, "tagID")
	if err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	if err := c.service.RemoveTag(r.Context(), id, tagID); err != nil {
		writeFailure(w, c.log, op, err)
		return
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"message": "Tag removed"})
}
