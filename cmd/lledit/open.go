package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
	"github.com/lledit/lledit/internal/work"
)

const openHelp = `lledit open [-flags] <dsid>

Open a dsid (in the textual form of spec.md §6) and either list its
children or, with -read, dump its bytes to stdout.

Example:
  lledit open '/"FileSystem"/"tmp"/"image.png"/?Png'
  lledit open -read '/"FileSystem"/"tmp"/"image.png"'
`

func open(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("open", flag.ExitOnError)
	read := fset.Bool("read", false, "dump the datastore's bytes to stdout instead of listing its children")
	fset.Usage = func() { fmt.Fprint(os.Stderr, openHelp) }
	fset.Parse(args)

	if fset.NArg() != 1 {
		fset.Usage()
		os.Exit(2)
	}

	id, err := dsid.Parse(fset.Arg(0))
	if err != nil {
		return err
	}

	sess, err := newSession()
	if err != nil {
		return err
	}

	ds, err := sess.Open(ctx, id, session.Tag("<lledit-cli>"))
	if err != nil {
		return err
	}
	defer sess.Release(ds, session.Tag("<lledit-cli>"))

	if *read {
		return readAll(ctx, ds)
	}
	return list(ctx, ds)
}

func list(ctx context.Context, ds session.DataStore) error {
	it := ds.EnumKeys(ctx)
	for {
		key, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fmt.Println(key.String())
	}
}

// readAll streams ds's entire byte range to stdout under a work.Job, so a
// SIGINT during a large read cancels the read instead of hanging until it
// finishes: the loop stops before its next chunk once the job's context is
// cancelled. Progress is only printed (to stderr) when stdout is a
// terminal, mirroring cmd/distri's quieter behavior when piped.
func readAll(ctx context.Context, ds session.DataStore) error {
	interactive := isatty.IsTerminal(os.Stdout.Fd())

	size, err := ds.GetSize(ctx)
	if err != nil {
		return err
	}

	job := work.NewJob(ctx, "read")
	job.Run(func(ctx context.Context) error {
		const chunk = 1 << 20
		var done int64
		for done < size || size == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := done + chunk
			if end > size {
				end = size
			}
			b, err := ds.ReadBytes(ctx, rangealg.Range{Start: done, End: end})
			if err != nil {
				return err
			}
			if len(b) == 0 {
				break
			}
			if _, err := os.Stdout.Write(b); err != nil {
				return err
			}
			done += int64(len(b))
			if interactive {
				fmt.Fprintf(os.Stderr, "\r%d/%d bytes", done, size)
			}
		}
		if interactive {
			fmt.Fprintln(os.Stderr)
		}
		return nil
	})
	return job.Wait()
}
