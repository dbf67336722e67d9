package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"text/tabwriter"

	"github.com/hunt2035/SoundSync-sub002/pkg/books"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/importer"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/hunt2035/SoundSync-sub002/pkg/ocrtext"
	"github.com/hunt2035/SoundSync-sub002/pkg/reader"
	"github.com/hunt2035/SoundSync-sub002/pkg/search"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func importCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "import documents into the catalog",
		ArgsUsage: "<path or url>...",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "concurrency", Aliases: []string{"c"}, Value: 2, Usage: "imports to run at once"},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return errors.New("at least one source is required")
			}
			env, err := sh.open(c.Context)
			if err != nil {
				return err
			}

			out := &lockedWriter{w: c.App.Writer}
			g, ctx := errgroup.WithContext(sh.log.WithContext(c.Context))
			g.SetLimit(max(c.Int("concurrency"), 1))

			var mu sync.Mutex
			var failed int
			for _, source := range c.Args().Slice() {
				g.Go(func() error {
					err := runImport(ctx, env.Pipeline, source, out)
					if err != nil {
						mu.Lock()
						failed++
						mu.Unlock()
					}
					// One failed file does not stop the rest of the batch.
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			if failed > 0 {
				return errors.Errorf("%d of %d imports failed", failed, c.Args().Len())
			}
			return nil
		},
	}
}

// runImport imports one source, printing each forward move of its overall
// progress and the outcome.
func runImport(ctx context.Context, pipeline *importer.Pipeline, source string, out io.Writer) error {
	tracker := importer.NewTracker()
	book, err := pipeline.Run(ctx, importer.Request{Source: source}, func(p importer.Progress) {
		if overall, ok := tracker.Observe(p); ok {
			fmt.Fprintf(out, "%s: %s %d%%\n", source, p.Step, overall)
		}
	})
	if err != nil {
		fmt.Fprintf(out, "%s: failed: %s\n", source, err)
		return err
	}
	fmt.Fprintf(out, "%s: imported as #%d %q (%s)\n", source, book.ID, book.Title, book.Format)
	return nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func booksCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:  "books",
		Usage: "list the catalog",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 50},
			&cli.IntFlag{Name: "offset"},
			&cli.StringFlag{Name: "format", Usage: "only books of this format"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "only books whose title or author match"},
		},
		Action: func(c *cli.Context) error {
			env, err := sh.open(c.Context)
			if err != nil {
				return err
			}

			opts := books.ListBooksOptions{
				Limit:  pointerutil.Int(c.Int("limit")),
				Offset: pointerutil.Int(c.Int("offset")),
			}
			if f := c.String("format"); f != "" {
				if formats.Parse(f) == formats.Unknown {
					return errors.Errorf("unknown format %q", f)
				}
				opts.Format = &f
			}
			var list []*models.Book
			var total int
			if q := c.String("query"); q != "" {
				list, total, err = search.NewService(sh.db).SearchBooks(c.Context, search.SearchBooksOptions{
					Query:  q,
					Format: opts.Format,
					Limit:  *opts.Limit,
					Offset: *opts.Offset,
				})
			} else {
				list, total, err = env.Books.ListBooksWithTotal(c.Context, opts)
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tAUTHOR\tFORMAT\tPAGES\tLAST READ")
			for _, b := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%d\n", b.ID, b.Title, b.Author, b.Format, b.TotalPages, b.LastReadPage)
			}
			if err := tw.Flush(); err != nil {
				return errors.WithStack(err)
			}
			fmt.Fprintf(c.App.Writer, "%d of %d books\n", len(list), total)
			return nil
		},
	}
}

// openBook loads the engine for the book whose ID is the first argument.
func openBook(c *cli.Context, sh *shell) (reader.Engine, error) {
	id, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return nil, errors.Errorf("invalid book id %q", c.Args().First())
	}
	env, err := sh.open(c.Context)
	if err != nil {
		return nil, err
	}
	book, err := env.Books.RetrieveBook(c.Context, books.RetrieveBookOptions{ID: &id})
	if err != nil {
		return nil, err
	}

	e := reader.New(formats.Parse(book.Format), sh.engineDeps())
	if err := e.Initialize(book, book.LastReadPosition); err != nil {
		return nil, err
	}
	if err := e.LoadContent(sh.log.WithContext(c.Context)); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func readCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:      "read",
		Usage:     "print a page and remember it as the reading position",
		ArgsUsage: "<book id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "page", Usage: "0-based page to print, default is the saved position"},
			&cli.IntFlag{Name: "chapter", Usage: "0-based chapter to start at"},
			&cli.BoolFlag{Name: "chapters", Usage: "list the chapters instead"},
			&cli.BoolFlag{Name: "whole-chapter", Usage: "print the whole current chapter"},
		},
		Action: func(c *cli.Context) error {
			e, err := openBook(c, sh)
			if err != nil {
				return err
			}
			defer e.Close()

			if c.Bool("chapters") {
				printChapters(c.App.Writer, e.Chapters(), 0)
				return nil
			}

			switch {
			case c.IsSet("page"):
				err = e.GoToPage(c.Int("page"))
			case c.IsSet("chapter"):
				err = e.GoToChapter(c.Int("chapter"))
			}
			if err != nil {
				return err
			}

			var text string
			if c.Bool("whole-chapter") {
				text, err = e.CurrentChapterText()
			} else {
				text, err = e.CurrentPageText()
			}
			if err != nil {
				return err
			}

			state := e.State()
			fmt.Fprintf(c.App.Writer, "-- page %d of %d (%.0f%%) --\n%s\n", state.CurrentPage+1, state.TotalPages, state.ReadingProgress*100, text)
			return e.SaveReadingProgress(sh.log.WithContext(c.Context))
		},
	}
}

func printChapters(w io.Writer, chapters []*reader.Chapter, depth int) {
	for _, ch := range chapters {
		fmt.Fprintf(w, "%*s%d. %s (page %d)\n", depth*2, "", ch.Index, ch.Title, ch.PageIndex)
		printChapters(w, ch.SubChapters, depth+1)
	}
}

func searchCommand(sh *shell) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "find text in a book",
		ArgsUsage: "<book id> <query>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return errors.New("a book id and a query are required")
			}
			e, err := openBook(c, sh)
			if err != nil {
				return err
			}
			defer e.Close()

			results, err := e.SearchText(c.Context, c.Args().Get(1))
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(c.App.Writer, "page %d: %s[%s]%s\n", r.PageIndex,
					r.Snippet[:r.HighlightStart],
					r.Snippet[r.HighlightStart:r.HighlightEnd],
					r.Snippet[r.HighlightEnd:])
			}
			fmt.Fprintf(c.App.Writer, "%d matches\n", len(results))
			return nil
		},
	}
}

func ocrCommand() *cli.Command {
	return &cli.Command{
		Name:      "ocr",
		Usage:     "rejoin OCR line wraps in a file, or stdin",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			in := io.Reader(os.Stdin)
			if path := c.Args().First(); path != "" {
				f, err := os.Open(path)
				if err != nil {
					return errors.WithStack(err)
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return errors.WithStack(err)
			}
			_, err = io.WriteString(c.App.Writer, ocrtext.Normalize(string(data)))
			return errors.WithStack(err)
		},
	}
}
