package main

import (
	"os"

	"github.com/futig/doctalk-backend/internal/builder"
	"github.com/futig/doctalk-backend/internal/cli"
)

func main() {
	if err := cli.Execute(newEngine); err != nil {
		os.Exit(1)
	}
}

func newEngine(environment string) (cli.Engine, func(), error) {
	cfg, logger, err := builder.Setup(environment)
	if err != nil {
		return nil, nil, err
	}

	core, err := builder.BuildCore(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	return core.Usecase, func() {
		core.Close()
		_ = logger.Sync()
	}, nil
}
