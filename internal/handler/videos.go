package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ramtunguturi36/cvb/internal/service"
)

// VideoHandler serves /api/videos.
type VideoHandler struct {
	Catalog *service.Catalog
}

func NewVideoHandler(cat *service.Catalog) *VideoHandler {
	return &VideoHandler{Catalog: cat}
}

// Feed lists active videos.  Query: q, cursor, page, limit.
func (h *VideoHandler) Feed(c echo.Context) error {
	p := service.FeedParams{
		Search: strings.TrimSpace(c.QueryParam("q")),
		Cursor: c.QueryParam("cursor"),
	}
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "invalid_page")
		}
		p.Page = n
	}
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return badRequest(c, "invalid_limit")
		}
		p.Limit = n
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	res, err := h.Catalog.Feed(ctx, p)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *VideoHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid_id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	v, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Purchased lists the caller's paid videos with their usable tokens.
func (h *VideoHandler) Purchased(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	list, err := h.Catalog.Purchased(ctx, id.UserID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, items(list))
}

type videoReq struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	PriceINR     int64  `json:"priceINR"`
	Folder       string `json:"folder"`
	PreviewURL   string `json:"previewUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	FileURL      string `json:"fileUrl"`
}

// Create adds a video from JSON metadata whose media is already hosted.
func (h *VideoHandler) Create(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req videoReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	v, err := h.Catalog.Create(ctx, id, service.VideoInput{
		Title:        req.Title,
		Description:  req.Description,
		PriceINR:     req.PriceINR,
		Folder:       req.Folder,
		PreviewURL:   req.PreviewURL,
		ThumbnailURL: req.ThumbnailURL,
		FileURL:      req.FileURL,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// Upload creates a video from a multipart form with fields title,
// description, priceINR and folder, and files previewFile and fullFile.
func (h *VideoHandler) Upload(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	price, err := strconv.ParseInt(strings.TrimSpace(c.FormValue("priceINR")), 10, 64)
	if err != nil {
		return badRequest(c, "invalid_price")
	}
	in := service.VideoInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		PriceINR:    price,
		Folder:      c.FormValue("folder"),
	}

	full, closeFull, err := formFile(c, "fullFile")
	if err != nil {
		return badRequest(c, "invalid_upload")
	}
	defer closeFull()
	preview, closePreview, err := formFile(c, "previewFile")
	if err != nil {
		return badRequest(c, "invalid_upload")
	}
	defer closePreview()

	// Uploads can be large; the request context alone bounds the copy.
	v, err := h.Catalog.Upload(c.Request().Context(), id, in, preview, full)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// formFile opens the named multipart file.  A missing part yields nil.
func formFile(c echo.Context, field string) (*service.UploadFile, func(), error) {
	fh, err := c.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.UploadFile{
		Filename:    fh.Filename,
		ContentType: contentType(fh),
		Body:        f,
	}, func() { _ = f.Close() }, nil
}

func contentType(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get(echo.HeaderContentType); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Update applies a partial edit.
func (h *VideoHandler) Update(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid_id")
	}
	var req service.VideoUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_body")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	v, err := h.Catalog.Update(ctx, who, id, req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete hides the video from the catalog.  Rows are kept for the ledger.
func (h *VideoHandler) Delete(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return respondErr(c, err)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid_id")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Catalog.Delete(ctx, who, id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
