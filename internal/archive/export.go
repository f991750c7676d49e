// Package archive packs a FileSystemObject subtree, overlay edits and all,
// into a gzip-compressed cpio archive: a snapshot of whatever the session
// currently sees at that path, mirroring the teacher's cmd/distri/initrd.go
// (which performs the same walk-and-cpio-write over a package tree).
package archive

import (
	"context"
	"io"
	"path"
	"sort"

	"github.com/cavaliercoder/go-cpio"
	"github.com/google/renameio"
	"github.com/klauspost/pgzip"
	"golang.org/x/xerrors"

	"github.com/lledit/lledit/internal/datastore"
	"github.com/lledit/lledit/internal/dsid"
	"github.com/lledit/lledit/internal/rangealg"
	"github.com/lledit/lledit/internal/session"
)

// chunkSize bounds how much of a file's bytes are read into memory per
// ReadBytes call while streaming it into the archive.
const chunkSize = 1 << 20

// Export walks the FileSystemObject subtree rooted at root (an absolute dsid
// beginning with the FileSystem top-level name) and atomically writes a
// gzip-compressed cpio archive to outputPath.
func Export(ctx context.Context, sess *session.Session, root dsid.Dsid, outputPath string) error {
	out, err := renameio.TempFile("", outputPath)
	if err != nil {
		return err
	}
	defer out.Cleanup()

	zw := pgzip.NewWriter(out)
	cw := cpio.NewWriter(zw)

	rootDS, err := sess.Open(ctx, root, session.Tag("<archive-export>"))
	if err != nil {
		return err
	}
	defer sess.Release(rootDS, session.Tag("<archive-export>"))

	if err := walk(ctx, sess, rootDS, root, "", cw); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}

// walk writes ds (named id, rooted at archive path name) and, if it is a
// directory, recurses into its entries. name is "" for the archive root.
func walk(ctx context.Context, sess *session.Session, ds session.DataStore, id dsid.Dsid, name string, cw *cpio.Writer) error {
	fso, ok := ds.(*datastore.FileSystemObject)
	if !ok {
		return xerrors.Errorf("%s: archive export only walks FileSystemObject subtrees", id.String())
	}

	isDir, mode, err := statOf(ctx, sess, fso, id)
	if err != nil {
		return err
	}

	if isDir {
		if name != "" {
			if err := cw.WriteHeader(&cpio.Header{
				Name: name + "/",
				Mode: cpio.ModeDir | cpio.FileMode(mode.Perm()),
			}); err != nil {
				return err
			}
		}
		return walkChildren(ctx, sess, fso, id, name, cw)
	}

	size, err := fso.GetSize(ctx)
	if err != nil {
		return err
	}
	if err := cw.WriteHeader(&cpio.Header{
		Name: name,
		Mode: cpio.FileMode(mode.Perm()),
		Size: size,
	}); err != nil {
		return err
	}
	return streamFile(ctx, fso, size, cw)
}

func walkChildren(ctx context.Context, sess *session.Session, fso *datastore.FileSystemObject, id dsid.Dsid, name string, cw *cpio.Writer) error {
	it := fso.EnumKeys(ctx)
	var names []string
	for {
		key, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		n, ok := key.(dsid.Name)
		if !ok {
			continue // skip Stat and any Broken warning keys
		}
		names = append(names, string(n))
	}
	sort.Strings(names)

	for _, n := range names {
		childID := id.Append(dsid.Name(n))
		child, err := sess.Open(ctx, childID, session.From(id))
		if err != nil {
			return xerrors.Errorf("open %s: %w", childID.String(), err)
		}
		childName := n
		if name != "" {
			childName = path.Join(name, n)
		}
		walkErr := walk(ctx, sess, child, childID, childName, cw)
		sess.Release(child, session.From(id))
		if walkErr != nil {
			return walkErr
		}
	}
	return nil
}

// statOf opens id's Stat/Mode leaf to decode whether id is a directory, and
// its permission bits.
func statOf(ctx context.Context, sess *session.Session, fso *datastore.FileSystemObject, id dsid.Dsid) (isDir bool, mode uint32, _ error) {
	statID := id.Append(dsid.Stat{})
	statDS, err := sess.Open(ctx, statID, session.From(id))
	if err != nil {
		return false, 0, err
	}
	defer sess.Release(statDS, session.From(id))

	modeID := statID.Append(dsid.Name("Mode"))
	modeDS, err := sess.Open(ctx, modeID, session.From(statID))
	if err != nil {
		return false, 0, err
	}
	defer sess.Release(modeDS, session.From(statID))

	u, ok := modeDS.(*datastore.UIntBE)
	if !ok {
		return false, 0, xerrors.Errorf("%s: Mode field is not a UIntBE", modeID.String())
	}
	v, err := u.Value(ctx)
	if err != nil {
		return false, 0, err
	}
	const modeDirBit = 1 << 31 // matches os.ModeDir's position once truncated into the 32-bit snapshot
	return v&modeDirBit != 0, uint32(v) & 0777, nil
}

func streamFile(ctx context.Context, fso *datastore.FileSystemObject, size int64, cw io.Writer) error {
	for off := int64(0); off < size; off += chunkSize {
		end := off + chunkSize
		if end > size {
			end = size
		}
		b, err := fso.ReadBytes(ctx, rangealg.Range{Start: off, End: end})
		if err != nil {
			return err
		}
		if _, err := cw.Write(b); err != nil {
			return err
		}
	}
	return nil
}
