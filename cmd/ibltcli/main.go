// The MIT License (MIT)
//
// # Copyright (c) 2026 nickva
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Command ibltcli exercises the iblt engine end to end: it keeps an IBLT's
// state in a snapshot file between invocations, so "insert", "delete",
// "get", "is-element", "list", "fpr" and "subtract" can be run as separate
// commands against the same table.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/nickva/iblt/bitstring"
	"github.com/nickva/iblt/hfs"
	"github.com/nickva/iblt/iblt"
)

// VERSION is injected by build flags.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	app := cli.NewApp()
	app.Name = "ibltcli"
	app.Usage = "create, mutate and inspect an Invertible Bloom Lookup Table"
	app.Version = VERSION

	globalFlags := []cli.Flag{
		cli.StringFlag{
			Name:  "file,f",
			Value: "iblt.snapshot",
			Usage: "path to the table's snapshot file",
		},
		cli.StringFlag{
			Name:   "key,k",
			Value:  "",
			Usage:  "passphrase the table's hash function set is derived from",
			EnvVar: "IBLTCLI_KEY",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "init",
			Usage: "create a new, empty snapshot",
			Flags: append(globalFlags,
				cli.IntFlag{Name: "hashcount", Value: 4, Usage: "K, the number of hash functions"},
				cli.IntFlag{Name: "cells", Value: 1000, Usage: "requested total cell count"},
				cli.BoolTFlag{Name: "prime", Usage: "round col_size to the nearest prime"},
			),
			Action: actionInit,
		},
		{
			Name:      "insert",
			Usage:     "insert a key/value pair",
			ArgsUsage: "<key> <value>",
			Flags:     globalFlags,
			Action:    actionInsert,
		},
		{
			Name:      "delete",
			Usage:     "delete a key/value pair",
			ArgsUsage: "<key> <value>",
			Flags:     globalFlags,
			Action:    actionDelete,
		},
		{
			Name:      "get",
			Usage:     "look up a key's value",
			ArgsUsage: "<key>",
			Flags:     globalFlags,
			Action:    actionGet,
		},
		{
			Name:      "is-element",
			Usage:     "test membership of a key",
			ArgsUsage: "<key>",
			Flags:     globalFlags,
			Action:    actionIsElement,
		},
		{
			Name:   "list",
			Usage:  "peel and list every entry the table can currently decode",
			Flags:  globalFlags,
			Action: actionList,
		},
		{
			Name:   "fpr",
			Usage:  "report the analytically expected false-positive rate",
			Flags:  globalFlags,
			Action: actionFPR,
		},
		{
			Name:      "subtract",
			Usage:     "subtract another snapshot and list the symmetric difference",
			ArgsUsage: "<other-file>",
			Flags:     globalFlags,
			Action:    actionSubtract,
		},
	}

	checkError(app.Run(os.Args))
}

func checkError(err error) {
	if err != nil {
		log.Printf("%+v\n", err)
		os.Exit(1)
	}
}

func configFromContext(c *cli.Context) Config {
	config := defaultConfig()
	config.File = c.String("file")
	config.Key = c.String("key")
	if c.IsSet("hashcount") {
		config.HashCount = c.Int("hashcount")
	}
	if c.IsSet("cells") {
		config.Cells = c.Int("cells")
	}
	if c.IsSet("prime") {
		config.Prime = c.BoolT("prime")
	}
	if c.String("c") != "" {
		if err := parseJSONConfig(&config, c.String("c")); err != nil {
			checkError(errors.Wrap(err, "loading config file"))
		}
	}
	return config
}

func openHFS(config Config) (hfs.Interface, error) {
	if config.Key != "" {
		return hfs.NewFromPassphrase(config.HashCount, config.Key)
	}
	color.Red("WARNING: no -key given; a fresh random hash function set will not match any other party's table")
	return hfs.New(config.HashCount)
}

func loadTable(config Config) (*iblt.IBLT, error) {
	h, err := openHFS(config)
	if err != nil {
		return nil, errors.Wrap(err, "constructing hash function set")
	}
	blob, err := os.ReadFile(config.File)
	if err != nil {
		return nil, errors.Wrapf(err, "reading snapshot %s", config.File)
	}
	return iblt.Deserialize(blob, h)
}

func saveTable(config Config, t *iblt.IBLT) error {
	blob, err := t.Serialize()
	if err != nil {
		return errors.Wrap(err, "serializing table")
	}
	return errors.Wrapf(os.WriteFile(config.File, blob, 0o644), "writing snapshot %s", config.File)
}

func actionInit(c *cli.Context) error {
	config := configFromContext(c)
	h, err := openHFS(config)
	if err != nil {
		return errors.Wrap(err, "constructing hash function set")
	}
	opts := iblt.Options{Prime: config.Prime}
	t, err := iblt.New(h, config.Cells, opts)
	if err != nil {
		return errors.Wrap(err, "creating table")
	}
	if err := saveTable(config, t); err != nil {
		return err
	}
	cells, _ := t.GetProp("cell_count")
	col, _ := t.GetProp("col_size")
	color.Green("created %s: hash_count=%d col_size=%d cell_count=%d", config.File, config.HashCount, col, cells)
	return nil
}

func actionInsert(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("insert requires <key> <value>")
	}
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	value, err := parseValue(c.Args().Get(1))
	if err != nil {
		return err
	}
	t.Insert(bitstring.FromString(c.Args().Get(0)), value)
	return saveTable(config, t)
}

func actionDelete(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("delete requires <key> <value>")
	}
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	value, err := parseValue(c.Args().Get(1))
	if err != nil {
		return err
	}
	t.Delete(bitstring.FromString(c.Args().Get(0)), value)
	return saveTable(config, t)
}

func actionGet(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("get requires <key>")
	}
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	v, err := t.Get(bitstring.FromString(c.Args().Get(0)))
	if err != nil {
		if errors.Cause(err) == iblt.ErrNotFound {
			color.Yellow("not found")
			return nil
		}
		return err
	}
	fmt.Println(v)
	return nil
}

func actionIsElement(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("is-element requires <key>")
	}
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	if t.IsElement(bitstring.FromString(c.Args().Get(0))) {
		color.Green("true")
	} else {
		color.Yellow("false")
	}
	return nil
}

func actionList(c *cli.Context) error {
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	for _, e := range t.ListEntries() {
		fmt.Printf("%s\t%d\n", string(e.Key.Bytes()), e.Value)
	}
	return nil
}

func actionFPR(c *cli.Context) error {
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	fmt.Printf("%.6f\n", t.GetFPR())
	return nil
}

func actionSubtract(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("subtract requires <other-file>")
	}
	config := configFromContext(c)
	t, err := loadTable(config)
	if err != nil {
		return err
	}
	otherConfig := config
	otherConfig.File = c.Args().Get(0)
	other, err := loadTable(otherConfig)
	if err != nil {
		return err
	}
	diff, err := t.Subtract(other)
	if err != nil {
		return errors.Wrap(err, "subtracting tables")
	}
	for _, e := range diff.ListEntries() {
		fmt.Printf("%s\t%d\n", string(e.Key.Bytes()), e.Value)
	}
	return nil
}

func parseValue(s string) (int64, error) {
	var v int64
	_, err := fmt.Sscanf(s, "%d", &v)
	if err != nil {
		return 0, errors.Wrapf(err, "value %q is not an integer", s)
	}
	return v, nil
}
