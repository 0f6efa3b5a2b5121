package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/counter"
	"github.com/trezcool/academia/core/user"
	exportsvc "github.com/trezcool/academia/services/export"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp         = errors.New("help provided")
	errNoCounterSQL = errors.New("migrations only apply to the postgres counter backend")
)

// indexCreator is implemented by stores that maintain their own indexes.
type indexCreator interface {
	CreateIndexes(ctx context.Context) error
}

type commandLine struct {
	conf    *core.Config
	sqlDB   *sql.DB // counter DB; nil with the mongo backend
	indexes indexCreator
	counter counter.Store
	usrSvc  *user.Service
	exports *exportsvc.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  initcounter [-start N] - create the receipt counter (never lowers an existing one)")
	fmt.Println("  migrate COMMAND [ARGS] - run goose migrations against the postgres counter DB")
	fmt.Println("  createindexes - create the mongo indexes")
	fmt.Println("  adduser -name NAME -username USERNAME -email EMAIL [-owner] - create or update an admin")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  export -start N -end N [-fees] -out FILE - export students to a spreadsheet")
}

func (cli *commandLine) readPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	initCounterCmd := flag.NewFlagSet("initcounter", flag.ContinueOnError)
	initCounterStart := initCounterCmd.Int64("start", cli.conf.Counter.Start, "The value the first receipt number follows.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserOwner := addUserCmd.Bool("owner", false, "Grant the owner role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportStart := exportCmd.Int("start", 0, "The first roll number.")
	exportEnd := exportCmd.Int("end", 0, "The last roll number.")
	exportFees := exportCmd.Bool("fees", false, "Add the installments sheet.")
	exportOut := exportCmd.String("out", "", "The output .xlsx file.")

	switch args[1] {
	case "initcounter":
		if err := initCounterCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.initCounter(*initCounterStart)

	case "migrate":
		if len(args) < 3 {
			fmt.Println("Usage: migrate up|up-by-one|up-to|down|down-to|redo|reset|status|version|create|fix [ARGS]")
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createindexes":
		return cli.createIndexes()

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserOwner)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportOut == "" || *exportEnd == 0 {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(*exportStart, *exportEnd, *exportFees, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
