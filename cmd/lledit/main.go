// Command lledit is a small interactive-ish demo shell over the datastore
// graph and overlay engine: enough to open a dsid, list its children, read
// its bytes, and serve a snapshot export over HTTP, grounded on
// cmd/distri/distri.go's verb-dispatch shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/lledit/lledit"
	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/session"
	png "github.com/lledit/lledit/schemas/png"
)

var debug = flag.Bool("debug", false, "format error messages with additional detail")

func newSession() (*session.Session, error) {
	sess, err := session.New(datastore.NewRoot)
	if err != nil {
		return nil, err
	}
	datastore.RegisterCore(sess)
	png.Register(sess)
	return sess, nil
}

func funcmain() error {
	flag.Parse()

	type cmd struct {
		fn func(ctx context.Context, args []string) error
	}
	verbs := map[string]cmd{
		"open":   {open},
		"browse": {browse},
	}

	args := flag.Args()
	verb := "open"
	if len(args) > 0 {
		verb, args = args[0], args[1:]
	}

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		fmt.Fprintf(os.Stderr, "syntax: lledit <open|browse> [options]\n")
		os.Exit(2)
	}

	ctx, canc := lledit.InterruptibleContext()
	defer canc()

	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return lledit.RunAtExit()
}

func main() {
	log.SetFlags(0)
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
