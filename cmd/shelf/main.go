package main

import (
	"os"

	"github.com/hunt2035/SoundSync-sub002/pkg/version"
	"github.com/robinjoseph08/golib/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logger.New()
	sh := &shell{log: log}

	app := &cli.App{
		Name:    "shelf",
		Usage:   "import and read documents from the command line",
		Version: version.Version,
		After: func(_ *cli.Context) error {
			return sh.close()
		},
		Commands: []*cli.Command{
			importCommand(sh),
			booksCommand(sh),
			readCommand(sh),
			searchCommand(sh),
			ocrCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Err(err).Fatal("shelf error")
	}
}
