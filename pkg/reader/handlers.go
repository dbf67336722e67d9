package reader

import (
	"image/jpeg"
	"net/http"
	"strconv"

	"github.com/hunt2035/SoundSync-sub002/pkg/books"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	bookService *books.Service
	sessions    *Sessions
}

func bookID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Book")
	}
	return id, nil
}

// engine returns the open engine for the request's book. Reading requires
// the book to have been opened first.
func (h *handler) engine(c echo.Context) (Engine, error) {
	id, err := bookID(c)
	if err != nil {
		return nil, err
	}
	e, ok := h.sessions.Get(id)
	if !ok {
		return nil, errcodes.NotFound("Open reader")
	}
	return e, nil
}

func (h *handler) open(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	book, err := h.bookService.RetrieveBook(ctx, books.RetrieveBookOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	e, err := h.sessions.Open(ctx, book)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, e.State()))
}

func (h *handler) state(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, e.State()))
}

// close saves the position and closes the engine. A failed save does not
// keep the engine open.
func (h *handler) close(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := bookID(c)
	if err != nil {
		return err
	}

	if e, ok := h.sessions.Get(id); ok {
		_ = e.SaveReadingProgress(ctx)
	}
	if err := h.sessions.Close(id); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) page(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	content, err := e.CurrentPage()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, content))
}

func (h *handler) navigate(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	params := NavigatePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	dir := Next
	if params.Direction == Previous.String() {
		dir = Previous
	}
	if _, err := e.NavigatePage(dir); err != nil {
		return errors.WithStack(err)
	}
	return h.respondWithPage(c, e)
}

func (h *handler) goTo(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	params := GoToPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	switch {
	case params.Page != nil && params.Chapter != nil:
		return errcodes.ValidationError("Only one of page and chapter can be given.")
	case params.Page != nil:
		err = e.GoToPage(*params.Page)
	case params.Chapter != nil:
		err = e.GoToChapter(*params.Chapter)
	default:
		return errcodes.ValidationError("One of page and chapter is required.")
	}
	if err != nil {
		return errors.WithStack(err)
	}
	return h.respondWithPage(c, e)
}

func (h *handler) respondWithPage(c echo.Context, e Engine) error {
	content, err := e.CurrentPage()
	if err != nil {
		return errors.WithStack(err)
	}
	resp := struct {
		State State    `json:"state"`
		Page  *Content `json:"page"`
	}{e.State(), content}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) chapters(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	chapters := e.Chapters()
	if chapters == nil {
		chapters = []*Chapter{}
	}
	return errors.WithStack(c.JSON(http.StatusOK, chapters))
}

func (h *handler) search(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	params := SearchQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	results, err := e.SearchText(ctx, params.Query)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Results []SearchResult `json:"results"`
		Total   int            `json:"total"`
	}{results, len(results)}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

// speech returns the plain text a speech synthesizer should read.
func (h *handler) speech(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	params := SpeechQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	var text string
	if params.Scope == "chapter" {
		text, err = e.CurrentChapterText()
	} else {
		text, err = e.CurrentPageText()
	}
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Scope string `json:"scope"`
		Text  string `json:"text"`
	}{params.Scope, text}
	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) config(c echo.Context) error {
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	params := Config{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	if err := e.UpdateConfig(params); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, e.State()))
}

func (h *handler) saveProgress(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.engine(c)
	if err != nil {
		return err
	}
	if err := e.SaveReadingProgress(ctx); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.JSON(http.StatusOK, e.State()))
}

func (h *handler) cover(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.engine(c)
	if err != nil {
		return err
	}

	img := e.BookCover(ctx)
	if img == nil {
		return errcodes.NotFound("Cover")
	}

	c.Response().Header().Set(echo.HeaderContentType, "image/jpeg")
	c.Response().WriteHeader(http.StatusOK)
	return errors.WithStack(jpeg.Encode(c.Response(), img, &jpeg.Options{Quality: 85}))
}
