package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/setting"
)

func (cli *commandLine) setting(ctx context.Context, args []string) error {
	declareCmd := flag.NewFlagSet("setting declare", flag.ExitOnError)
	declareKey := declareCmd.String("key", "", "The setting key.")
	declareType := declareCmd.String("type", "", "The value type: boolean, integer, string, json or array.")
	declareGroup := declareCmd.String("group", "general", "The settings group.")
	declareDesc := declareCmd.String("description", "", "What the setting controls.")
	declarePublic := declareCmd.Bool("public", false, "Whether anonymous users may read the setting.")
	declareValue := declareCmd.String("value", "null", "The initial value, as JSON.")

	setCmd := flag.NewFlagSet("setting set", flag.ExitOnError)
	setKey := setCmd.String("key", "", "The setting key.")
	setValue := setCmd.String("value", "", "The new value, as JSON.")

	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	switch args[0] {
	case "declare":
		if err := declareCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *declareKey == "" || *declareType == "" {
			declareCmd.Usage()
			return errHelp
		}
		desc := setting.Descriptor{
			Key:         *declareKey,
			Type:        setting.Type(*declareType),
			Group:       *declareGroup,
			Description: *declareDesc,
			IsPublic:    *declarePublic,
		}
		s, err := cli.setSvc.Declare(ctx, desc, parseValue(*declareValue))
		if err != nil {
			return errors.Wrap(err, "declaring setting")
		}
		cli.printf("setting %s declared: %s\n", s.Key, s.Value)
		return nil

	case "set":
		if err := setCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *setKey == "" || *setValue == "" {
			setCmd.Usage()
			return errHelp
		}
		s, err := cli.setSvc.Update(ctx, *setKey, parseValue(*setValue))
		if err != nil {
			return errors.Wrap(err, "updating setting")
		}
		cli.printf("setting %s updated: %s\n", s.Key, s.Value)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

// parseValue reads raw as JSON, falling back to the plain string.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func (cli *commandLine) pruneCounters(ctx context.Context) error {
	if cli.counters == nil {
		return errNoDatabase
	}
	n, err := cli.counters.PruneExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	cli.printf("%d expired counters deleted\n", n)
	return nil
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	fmt.Fprintf(cli.out, format, args...)
}
