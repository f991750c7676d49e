package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/lpar/gzipped/v2"
	"golang.org/x/sync/errgroup"

	"github.com/lledit/lledit/internal/archive"
	"github.com/lledit/lledit/internal/dsid"
)

const browseHelp = `lledit browse [-flags] <dsid>

Snapshot the FileSystemObject subtree named by dsid into a gzip-compressed
cpio archive and serve the directory containing it over HTTP, mirroring
cmd/distri export's serving of a package store.

Example:
  lledit browse '/"FileSystem"/"tmp"/"project"'
`

func browse(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("browse", flag.ExitOnError)
	listen := fset.String("listen", ":7080", "[host]:port listen address")
	dir := fset.String("dir", os.TempDir(), "directory to write the snapshot archive into")
	gzip := fset.Bool("gzip", true, "serve .gz files (if they exist)")
	fset.Usage = func() { fmt.Fprint(os.Stderr, browseHelp) }
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

	outputPath := *dir + "/lledit-snapshot.cpio.gz"
	if err := archive.Export(ctx, sess, id, outputPath); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", *listen)
	if err != nil {
		return err
	}
	addr := ln.Addr().String()
	log.Printf("serving %s on %s", *dir, addr)

	mux := http.NewServeMux()
	if *gzip {
		mux.Handle("/", gzipped.FileServer(http.Dir(*dir)))
	} else {
		mux.Handle("/", http.FileServer(http.Dir(*dir)))
	}
	server := &http.Server{Addr: addr, Handler: mux}

	var eg errgroup.Group
	eg.Go(func() error { return server.Serve(ln) })
	eg.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(ctx)
	})
	return eg.Wait()
}
