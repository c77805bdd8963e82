package controllers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"game_catalogue/internal/clients/steamgriddb"
	"game_catalogue/internal/models"
	"game_catalogue/internal/storage/uploads"

	"github.com/google/uuid"
)

const (
	maxCoverSize = 10 << 20
	coverFolder  = "covers"
)

// coverTypes are the sniffed content types accepted as a cover.
var coverTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

type GameServicer interface {
	List(ctx context.Context, f models.GameFilter) ([]models.Game, error)
	GetByID(ctx context.Context, id int64) (*models.Game, error)
	Create(ctx context.Context, g *models.Game) (*models.Game, error)
	Update(ctx context.Context, g *models.Game) (*models.Game, error)
	Delete(ctx context.Context, id int64) (*models.Game, error)
	SetCover(ctx context.Context, id int64, cover string) error
	Platforms(ctx context.Context) ([]string, error)
	UniqueValues(ctx context.Context, field string) ([]string, error)
	ExportCSV(ctx context.Context, w io.Writer, f models.GameFilter) (int, error)
}

type DeleteGameRequest struct {
	ID *int64 `json:"id"`
}

type GameController struct {
	service GameServicer
	log     *slog.Logger
	uploads uploads.IUploads
}

func NewGameController(s GameServicer, log *slog.Logger, u uploads.IUploads) *GameController {
	return &GameController{
		service: s,
		log:     log,
		uploads: u,
	}
}

func gameFilter(r *http.Request) models.GameFilter {
	q := r.URL.Query()
	return models.GameFilter{
		Publisher: q.Get("publisher"),
		Platform:  q.Get("platform"),
		Genre:     q.Get("genre"),
		Year:      q.Get("year"),
		Search:    q.Get("search"),
		Region:    q.Get("region"),
	}
}

func (c *GameController) List(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.List"

	games, err := c.service.List(r.Context(), gameFilter(r))
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, games)
}

func (c *GameController) GetByID(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.GetByID"

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	game, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, game)
}

func (c *GameController) Create(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Create"

	var game models.Game
	if err := decodeJSON(r, &game); err != nil {
		writeError(w, c.log, op, err)
		return
	}
	game.ID = 0

	res, err := c.service.Create(r.Context(), &game)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	c.log.Info("game created", slog.Int64("id", res.ID), slog.String("title", res.Title))
	writeJSON(w, c.log, http.StatusCreated, res)
}

func (c *GameController) Update(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Update"

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	var game models.Game
	if err := decodeJSON(r, &game); err != nil {
		writeError(w, c.log, op, err)
		return
	}
	game.ID = id

	res, err := c.service.Update(r.Context(), &game)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, res)
}

func (c *GameController) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Delete"

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	c.delete(w, r, op, id)
}

// DeleteByBody serves the older POST /delete_game {"id": n} form.
func (c *GameController) DeleteByBody(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.DeleteByBody"

	var req DeleteGameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, c.log, op, fmt.Errorf("%w: game id must be an integer", ErrInvalidID))
		return
	}
	if req.ID == nil || *req.ID <= 0 {
		writeError(w, c.log, op, fmt.Errorf("%w: game id must be an integer", ErrInvalidID))
		return
	}

	c.delete(w, r, op, *req.ID)
}

func (c *GameController) delete(w http.ResponseWriter, r *http.Request, op string, id int64) {
	game, err := c.service.Delete(r.Context(), id)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	// the row is gone already, a file that cannot be removed is only logged
	for _, p := range game.ArtworkPaths() {
		if err := c.uploads.DeleteImage(p); err != nil {
			c.log.Warn("failed to delete media file",
				slog.String("operation", op),
				slog.String("filename", p),
				slog.String("error", err.Error()))
		}
	}

	writeSuccess(w, c.log, http.StatusOK, map[string]any{"message": "Game deleted", "id": id})
}

func (c *GameController) Consoles(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.Consoles"

	consoles, err := c.service.Platforms(r.Context())
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, consoles)
}

// UniqueValues takes the field as ?type= like the first web client did;
// ?field= is accepted too.
func (c *GameController) UniqueValues(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.UniqueValues"

	field := r.URL.Query().Get("type")
	if field == "" {
		field = r.URL.Query().Get("field")
	}

	values, err := c.service.UniqueValues(r.Context(), field)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	writeJSON(w, c.log, http.StatusOK, values)
}

func (c *GameController) ExportCSV(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.ExportCSV"

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="games.csv"`)

	tw := &trackingWriter{ResponseWriter: w}
	n, err := c.service.ExportCSV(r.Context(), tw, gameFilter(r))
	if err != nil && !tw.wrote {
		w.Header().Del("Content-Disposition")
		writeError(w, c.log, op, err)
		return
	}
	if err != nil {
		// rows are out already, nothing left but to log
		c.log.Error("csv export failed",
			slog.String("operation", op),
			slog.Int("rows", n),
			slog.String("error", err.Error()))
		return
	}

	c.log.Debug("csv exported", slog.Int("rows", n))
}

func (c *GameController) UploadCover(w http.ResponseWriter, r *http.Request) {
	const op = "controllers.games.UploadCover"

	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	game, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}

	if err := r.ParseMultipartForm(maxCoverSize); err != nil {
		writeError(w, c.log, op, fmt.Errorf("%w: cannot parse form", ErrBadRequest))
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		writeError(w, c.log, op, fmt.Errorf("%w: cover not provided", ErrBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, c.log, op, err)
		return
	}
	if len(data) == 0 {
		writeError(w, c.log, op, fmt.Errorf("%w: cover is empty", ErrBadRequest))
		return
	}

	// the client's file name and content type are not trusted
	contentType := http.DetectContentType(data)
	if !coverTypes[contentType] {
		writeError(w, c.log, op, fmt.Errorf("%w: %s is not an accepted cover type", uploads.ErrInvalidImage, contentType))
		return
	}

	name := path.Join(coverFolder, uuid.New().String()+steamgriddb.Extension(contentType))
	if err := c.uploads.SaveImage(data, name); err != nil {
		writeError(w, c.log, op, err)
		return
	}

	if err := c.service.SetCover(r.Context(), id, name); err != nil {
		_ = c.uploads.DeleteImage(name)
		writeError(w, c.log, op, err)
		return
	}

	if old := game.CoverImage; old != "" && !strings.HasPrefix(old, "http") {
		if err := c.uploads.DeleteImage(old); err != nil {
			c.log.Warn("failed to delete previous cover",
				slog.String("operation", op),
				slog.String("filename", old),
				slog.String("error", err.Error()))
		}
	}

	writeJSON(w, c.log, http.StatusOK, map[string]string{"cover_image": name})
}

// trackingWriter remembers whether the body has been started.
type trackingWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		t.wrote = true
	}
	return t.ResponseWriter.Write(p)
}
