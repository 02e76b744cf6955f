package shows

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Repo     *Repo
	PageSize int
}

func NewHandler(repo *Repo, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &Handler{Repo: repo, PageSize: pageSize}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/shows", h.list)        // GET /shows?country=&status=&genre=&year=&search=&page=
	rg.GET("/shows/:id", h.getByID) // GET /shows/:id
	rg.GET("/years", h.years)       // GET /years
}

// maxPage keeps (page-1)*PageSize far from overflowing.
const maxPage = 100000

func (h *Handler) list(c *gin.Context) {
	page := min(max(parseInt(c.Query("page"), 1), 1), maxPage)

	q := ListQuery{
		Country: c.Query("country"),
		Status:  c.Query("status"),
		GenreID: int64(parseInt(c.Query("genre"), 0)),
		Year:    parseInt(c.Query("year"), 0),
		Search:  c.Query("search"),
		Limit:   h.PageSize,
		Offset:  (page - 1) * h.PageSize,
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     total,
		"page":      page,
		"page_size": h.PageSize,
		"pages":     (total + h.PageSize - 1) / h.PageSize,
		"items":     items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s, err := h.Repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) years(c *gin.Context) {
	years, err := h.Repo.Years(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "years failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"years": years})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
