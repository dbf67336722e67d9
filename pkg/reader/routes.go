package reader

import (
	"github.com/hunt2035/SoundSync-sub002/pkg/books"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers reader routes on the books group, so
// every path is under /books/:id/reader.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, sessions *Sessions) {
	h := &handler{
		bookService: books.NewService(db),
		sessions:    sessions,
	}

	r := g.Group("/:id/reader")
	r.POST("", h.open)
	r.GET("", h.state)
	r.DELETE("", h.close)
	r.GET("/page", h.page)
	r.POST("/navigate", h.navigate)
	r.POST("/goto", h.goTo)
	r.GET("/chapters", h.chapters)
	r.GET("/search", h.search)
	r.GET("/tts", h.speech)
	r.PUT("/config", h.config)
	r.POST("/progress", h.saveProgress)
	r.GET("/cover", h.cover)
}
