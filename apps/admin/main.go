package main

import (
	"context"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/setting"
	"github.com/trezcool/tadris/core/user"
	"github.com/trezcool/tadris/services/email"
	"github.com/trezcool/tadris/storage"
	"github.com/trezcool/tadris/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up storage
	stores, err := storage.Open(context.Background(), conf, false /* migrate */)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		usrRepo: stores.Users,
		usrSvc:  user.NewService(stores.Users, emailsvc.NewConsoleService(logger, conf, core.NewMailTemplates(conf)), conf),
		setSvc:  setting.NewService(stores.Settings),
		out:     os.Stdout,
	}
	if stores.DB != nil {
		cli.db = stores.DB.DB
		cli.counters = sqlxrepos.NewCounterStore(stores.DB)
	}

	err = cli.run(os.Args)
	if cErr := stores.Close(); cErr != nil {
		logger.Printf("closing storage: %v", cErr)
	}
	if err != nil {
		if !errors.Is(err, errHelp) {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
