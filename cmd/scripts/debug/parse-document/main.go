package main

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/hunt2035/SoundSync-sub002/pkg/converters"
	"github.com/hunt2035/SoundSync-sub002/pkg/fingerprint"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
	"github.com/hunt2035/SoundSync-sub002/pkg/mediafile"
	"github.com/hunt2035/SoundSync-sub002/pkg/pdf"
	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	var opts struct {
		CoverOutput string `short:"o" long:"cover-output" description:"A path to output the cover image as JPEG"`
		TextChars   int    `short:"n" long:"text-chars" default:"500" description:"How much of the extracted text to print"`
		RenderPDF   bool   `long:"render-pdf" description:"Render the first page of PDFs without an embedded cover"`
	}

	args, err := flags.Parse(&opts)
	if err != nil {
		log.Err(err).Fatal("flags parse error")
	}

	if len(args) != 1 {
		fmt.Println("go run ./cmd/scripts/debug/parse-document <path/to/document>")
		os.Exit(1)
	}
	path := args[0]

	format := formats.Detect(filepath.Base(path))
	if format == formats.Unknown {
		fmt.Printf("unsupported file extension: %s\n", filepath.Ext(path))
		os.Exit(1)
	}

	var renderer *pdf.CoverRenderer
	var covers pdf.FirstPageRenderer
	if opts.RenderPDF {
		renderer = pdf.NewCoverRenderer()
		defer renderer.Close()
		covers = renderer
	}
	converter := converters.New(covers).ForFormat(format)

	hash, err := fingerprint.File(ctx, path)
	if err != nil {
		log.Err(err).Fatal("fingerprint error")
	}

	metadata, err := converter.ExtractMetadata(ctx, path, format)
	if err != nil {
		log.Err(err).Fatal("metadata error")
	}
	fmt.Printf("Format:          %s\nFingerprint:     %s\n%s\n", format, hash, metadata)
	printChapters(metadata.Chapters, 1)

	text, err := mediafile.ExtractTextString(ctx, converter, path)
	if err != nil {
		log.Err(err).Fatal("text extraction error")
	}
	runes := []rune(text)
	fmt.Printf("Text Length:     %d characters\n", len(runes))
	if len(runes) > opts.TextChars {
		runes = runes[:opts.TextChars]
	}
	fmt.Printf("---\n%s\n---\n", string(runes))

	if opts.CoverOutput != "" && metadata.Cover != nil {
		f, err := os.Create(opts.CoverOutput)
		if err != nil {
			log.Err(err).Fatal("create file error")
		}
		defer f.Close()
		err = jpeg.Encode(f, metadata.Cover, &jpeg.Options{Quality: 90})
		if err != nil {
			log.Err(err).Fatal("file write error")
		}
	}
}

func printChapters(chapters []mediafile.ParsedChapter, depth int) {
	for _, ch := range chapters {
		loc := ""
		switch {
		case ch.Href != nil:
			loc = *ch.Href
		case ch.StartPage != nil:
			loc = fmt.Sprintf("page %d", *ch.StartPage)
		}
		fmt.Printf("%*s- %s (%s)\n", depth*2, "", ch.Title, loc)
		printChapters(ch.Children, depth+1)
	}
}
