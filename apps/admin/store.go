package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func (cli *commandLine) initCounter(start int64) error {
	ctx := context.Background()
	if err := cli.counter.Init(ctx, start); err != nil {
		return err
	}
	current, err := cli.counter.Current(ctx)
	if err != nil {
		return err
	}
	logger.Printf("receipt counter at %d, next receipt number is %d\n", current, current+1)
	return nil
}

func (cli *commandLine) createIndexes() error {
	if cli.indexes == nil {
		return nil
	}
	return cli.indexes.CreateIndexes(context.Background())
}

func (cli *commandLine) export(rollStart, rollEnd int, includeFees bool, out string) (err error) {
	f, err := os.Create(out)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
		if err != nil {
			_ = os.Remove(out)
		}
	}()

	if err = cli.exports.WriteStudents(context.Background(), f, rollStart, rollEnd, includeFees); err != nil {
		return err
	}
	logger.Println(fmt.Sprintf("students %d to %d exported to %s", rollStart, rollEnd, out))
	return nil
}
