package importer

import (
	"context"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hunt2035/SoundSync-sub002/pkg/errcodes"
	"github.com/hunt2035/SoundSync-sub002/pkg/fileutils"
	"github.com/hunt2035/SoundSync-sub002/pkg/fingerprint"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/models"
	"github.com/hunt2035/SoundSync-sub002/pkg/storage"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const copyAttempts = 5

// Catalog is the subset of the catalog store an import needs.
type Catalog interface {
	FindDuplicate(ctx context.Context, filepath, hash string) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error
}

// Resolver turns the opaque reference in a Request into local content.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*storage.Source, error)
}

// Storage is the managed storage area books and covers are written to.
type Storage interface {
	BooksDir() string
	CoversDir() string
	CheckWritable() error
	FreeSpace() (int64, error)
}

type CoverWriter interface {
	Save(img image.Image) (string, error)
}

// Request describes one file to import. FileName is the display name used
// for format detection and the stored file name; when empty the resolved
// source's own name is used.
type Request struct {
	Source   string
	FileName string
}

type Deps struct {
	Catalog    Catalog
	Resolver   Resolver
	Storage    Storage
	Converters *mediafile.Registry
	Covers     CoverWriter
	// Locker serializes the duplicate check and insert per content hash.
	// Pipelines sharing a catalog should share a Locker.
	Locker *fingerprint.Locker
}

// Pipeline runs imports. It is safe for concurrent use; each Run is an
// independent unit of work.
type Pipeline struct {
	catalog    Catalog
	resolver   Resolver
	storage    Storage
	converters *mediafile.Registry
	covers     CoverWriter
	locker     *fingerprint.Locker
}

func New(deps Deps) *Pipeline {
	locker := deps.Locker
	if locker == nil {
		locker = fingerprint.NewLocker()
	}
	return &Pipeline{
		catalog:    deps.Catalog,
		resolver:   deps.Resolver,
		storage:    deps.Storage,
		converters: deps.Converters,
		covers:     deps.Covers,
		locker:     locker,
	}
}

// run holds the state of a single import.
type run struct {
	p          *Pipeline
	req        Request
	name       string
	onProgress ProgressFunc
	log        logger.Logger
	step       Step

	// written is every file this import created, removed again on failure.
	written []string
}

// Run imports one file. On success the new catalog record is returned. Any
// failure is a *Failure naming the step it happened in, and leaves no
// catalog record and none of the files this run wrote. The source content
// is never modified or removed. ctx is checked at every step boundary.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress ProgressFunc) (book *models.Book, err error) {
	r := &run{
		p:          p,
		req:        req,
		name:       strings.TrimSpace(req.FileName),
		onProgress: onProgress,
		log:        logger.FromContext(ctx),
	}

	defer func() {
		if err != nil {
			r.cleanup()
			r.log.Err(err).Warn("import failed", logger.Data{
				"file_name": r.name,
				"step":      r.step.String(),
			})
		}
	}()

	src, format, err := r.validate(ctx)
	if err != nil {
		return nil, err
	}
	defer src.Release()
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StepMetadataExtraction)
	work, err := r.prepare(ctx, src, format)
	if err != nil {
		return nil, err
	}
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	// Everything from the duplicate check to the insert happens under the
	// hash lock so that equal content is persisted at most once.
	unlock, err := p.locker.Lock(ctx, work.hash)
	if err != nil {
		return nil, r.cancelled(err)
	}
	defer unlock()

	meta, err := r.extract(ctx, work)
	if err != nil {
		return nil, err
	}
	if err := r.checkpoint(ctx); err != nil {
		meta.Release()
		return nil, err
	}

	r.enter(StepCoverGeneration)
	coverPath := r.saveCover(ctx, meta)
	r.emit(100)
	if err := r.checkpoint(ctx); err != nil {
		return nil, err
	}

	r.enter(StepPersistence)
	book = &models.Book{
		Title:            meta.Title,
		Author:           meta.Author,
		Filepath:         work.path,
		OriginalFilepath: work.originalPath,
		CoverPath:        coverPath,
		ContentHash:      work.hash,
		Format:           work.format.String(),
		TotalPages:       meta.PageCount,
	}
	if err := p.catalog.CreateBook(ctx, book); err != nil {
		return nil, newFailure(StepPersistence, err, "The book could not be saved to the catalog.")
	}
	r.emit(100)

	r.log.Info("imported book", logger.Data{
		"book_id":   book.ID,
		"file_name": r.name,
		"format":    book.Format,
		"pages":     book.TotalPages,
	})
	return book, nil
}

func (r *run) enter(step Step) {
	r.step = step
	r.emit(0)
}

func (r *run) emit(percent int) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(Progress{Step: r.step, FileName: r.name, Percent: percent})
}

func (r *run) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return r.cancelled(err)
	}
	return nil
}

func (r *run) cancelled(err error) error {
	return &Failure{Step: r.step, Message: errcodes.Cancelled().Error(), Err: err}
}

func (r *run) fail(err error, fallback string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return r.cancelled(err)
	}
	return newFailure(r.step, err, fallback)
}

func (r *run) cleanup() {
	if len(r.written) == 0 {
		return
	}
	if err := fileutils.RemoveFiles(r.written...); err != nil {
		r.log.Err(err).Error("failed to clean up after import", logger.Data{"files": r.written})
	}
	r.written = nil
}

// validate checks every precondition before anything is written.
func (r *run) validate(ctx context.Context) (*storage.Source, formats.Format, error) {
	r.enter(StepValidation)

	if r.name != "" {
		if format := formats.Detect(r.name); format == formats.Unknown {
			return nil, format, newFailure(StepValidation, errcodes.UnsupportedFormat(r.name), "")
		}
	}

	if err := r.p.storage.CheckWritable(); err != nil {
		return nil, formats.Unknown, newFailure(StepValidation, err, "The storage area is not writable.")
	}

	src, err := r.p.resolver.Resolve(ctx, r.req.Source)
	if err != nil {
		return nil, formats.Unknown, r.fail(err, "The source could not be opened.")
	}
	if r.name == "" {
		r.name = src.Name
	}

	format := formats.Detect(r.name)
	fail := func(err error, fallback string) (*storage.Source, formats.Format, error) {
		src.Release()
		return nil, format, newFailure(StepValidation, err, fallback)
	}

	if format == formats.Unknown {
		return fail(errcodes.UnsupportedFormat(r.name), "")
	}
	if src.Size <= 0 {
		return fail(errcodes.ValidationError("The file \""+r.name+"\" is empty."), "")
	}
	free, err := r.p.storage.FreeSpace()
	if err != nil {
		return fail(err, "Free space in the storage area could not be determined.")
	}
	if free <= src.Size {
		return fail(errcodes.ValidationError("Not enough free space to import \""+r.name+"\"."), "")
	}

	r.sniff(src.Path, format)
	r.emit(100)
	return src, format, nil
}

var expectedMimeTypes = map[formats.Format]string{
	formats.EPUB: "application/epub+zip",
	formats.PDF:  "application/pdf",
	formats.DOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// sniff warns when the content does not look like its suffix claims. The
// suffix still decides the format.
func (r *run) sniff(path string, format formats.Format) {
	want, ok := expectedMimeTypes[format]
	if !ok {
		return
	}
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return
	}
	if !mtype.Is(want) {
		r.log.Warn("content does not match file name", logger.Data{
			"file_name": r.name,
			"format":    format.String(),
			"detected":  mtype.String(),
		})
	}
}

// workingFile is the file the rest of the import operates on.
type workingFile struct {
	path         string
	format       formats.Format
	originalPath *string
	// sourceFormat is the detected format before any conversion.
	sourceFormat formats.Format
	hash         string
}

// prepare copies the source into managed storage, converts it to text where
// possible, and hashes the result.
func (r *run) prepare(ctx context.Context, src *storage.Source, format formats.Format) (*workingFile, error) {
	dest, err := r.copySource(ctx, src)
	if err != nil {
		return nil, r.fail(err, "The file could not be copied into storage.")
	}
	r.emit(25)

	work := &workingFile{path: dest, format: format, sourceFormat: format}
	if format.ConvertibleToText() {
		if txt, ok := r.convertToText(ctx, dest, format); ok {
			original := dest
			work.originalPath = &original
			work.path = txt
			work.format = formats.Detect(txt)
		}
	}
	r.emit(50)

	work.hash, err = fingerprint.File(ctx, work.path)
	if err != nil {
		return nil, r.fail(err, "The file could not be read.")
	}
	r.emit(60)
	return work, nil
}

func (r *run) copySource(ctx context.Context, src *storage.Source) (string, error) {
	base := filepath.Join(r.p.storage.BooksDir(), fileutils.SanitizeFileName(r.name))

	var err error
	for i := 0; i < copyAttempts; i++ {
		dest := fileutils.UniqueFilepath(base)
		_, err = fileutils.CopyFile(ctx, src.Path, dest)
		if err == nil {
			r.written = append(r.written, dest)
			return dest, nil
		}
		// Another import claimed the same name between the check and the
		// create.
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", err
}

// convertToText writes the document's extracted text next to it. Any failure
// is logged and reported as not converted.
func (r *run) convertToText(ctx context.Context, path string, format formats.Format) (string, bool) {
	log := r.log.ID(r.name)
	txtPath := fileutils.UniqueFilepath(formats.TextCounterpart(path))

	f, err := os.OpenFile(txtPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		log.Err(err).Warn("could not create text file", logger.Data{"path": txtPath})
		return "", false
	}

	counter := &nonBlankWriter{w: f}
	err = r.p.converters.ForFormat(format).ExtractText(ctx, path, counter)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil || !counter.nonBlank {
		_ = os.Remove(txtPath)
		if err != nil {
			log.Err(err).Warn("text conversion failed, keeping original format", logger.Data{"format": format.String()})
		} else {
			log.Info("document has no text, keeping original format", logger.Data{"format": format.String()})
		}
		return "", false
	}

	r.written = append(r.written, txtPath)
	return txtPath, true
}

// extract runs the duplicate check and metadata extraction. It must be
// called with the hash lock held.
func (r *run) extract(ctx context.Context, work *workingFile) (*mediafile.ExtractedMetadata, error) {
	existing, err := r.p.catalog.FindDuplicate(ctx, work.path, work.hash)
	if err != nil {
		return nil, r.fail(err, "The catalog could not be searched for duplicates.")
	}
	if existing != nil {
		return nil, newFailure(r.step, errcodes.Duplicate(existing.Title), "")
	}
	r.emit(70)

	meta, err := r.p.converters.ForFormat(work.format).ExtractMetadata(ctx, work.path, work.format)
	if err != nil {
		return nil, r.fail(err, "The document's metadata could not be read.")
	}
	if work.originalPath != nil {
		r.supplement(ctx, meta, *work.originalPath, work.sourceFormat)
	}
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = fileutils.TitleFromFileName(r.name)
	}
	r.emit(100)
	return meta, nil
}

// supplement fills in what the converted text cannot know from the original
// document: title, author, cover and a native page count.
func (r *run) supplement(ctx context.Context, meta *mediafile.ExtractedMetadata, path string, format formats.Format) {
	orig, err := r.p.converters.ForFormat(format).ExtractMetadata(ctx, path, format)
	if err != nil {
		r.log.Err(err).Debug("original document metadata unavailable", logger.Data{"format": format.String()})
		return
	}
	if meta.Title == "" {
		meta.Title = orig.Title
	}
	if meta.Author == "" {
		meta.Author = orig.Author
	}
	if meta.Cover == nil && orig.Cover != nil {
		meta.Cover = orig.Cover
		meta.CoverMimeType = orig.CoverMimeType
	}
	if !orig.PageCountEstimated && orig.PageCount > 0 {
		meta.PageCount = orig.PageCount
		meta.PageCountEstimated = false
	}
}

// saveCover stores the metadata's cover, if any, and releases the image.
// A failed save only costs the cover.
func (r *run) saveCover(ctx context.Context, meta *mediafile.ExtractedMetadata) *string {
	defer meta.Release()

	if meta.Cover == nil || r.p.covers == nil {
		return nil
	}
	path, err := r.p.covers.Save(meta.Cover)
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("could not save cover, continuing without one", logger.Data{"file_name": r.name})
		return nil
	}
	r.written = append(r.written, path)
	return &path
}

// nonBlankWriter passes writes through and records whether anything other
// than whitespace went by.
type nonBlankWriter struct {
	w        io.Writer
	nonBlank bool
}

func (n *nonBlankWriter) Write(p []byte) (int, error) {
	if !n.nonBlank && strings.TrimSpace(string(p)) != "" {
		n.nonBlank = true
	}
	return n.w.Write(p)
}
