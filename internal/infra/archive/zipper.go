package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/naufalaziz23/piplinee/internal/domain/entity"
)

// Archiver writes annotated frames into a collection directory and packages
// that directory into a zip archive.
type Archiver struct {
	quality int
}

func NewArchiver(jpegQuality int) *Archiver {
	return &Archiver{quality: jpegQuality}
}

// Reset removes dir with everything in it and creates it again empty.
func (a *Archiver) Reset(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return &entity.IOError{Op: "remove collection", Path: dir, Err: err}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &entity.IOError{Op: "create collection", Path: dir, Err: err}
	}
	return nil
}

func (a *Archiver) WriteFrame(dir, filename string, img image.Image) error {
	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return &entity.IOError{Op: "create frame", Path: path, Err: err}
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: a.quality}); err != nil {
		f.Close()
		os.Remove(path)
		return &entity.IOError{Op: "encode frame", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &entity.IOError{Op: "close frame", Path: path, Err: err}
	}
	return nil
}

// PackageArchive zips every regular file below dir into archivePath. Entry
// names are relative to dir's parent, so the archive extracts into a single
// folder named after dir. The archive is written next to archivePath and
// renamed into place; on failure no file is left at archivePath.
func (a *Archiver) PackageArchive(ctx context.Context, dir, archivePath string) error {
	dir = filepath.Clean(dir)
	base := filepath.Dir(dir)

	tmp, err := os.CreateTemp(filepath.Dir(archivePath), "."+filepath.Base(archivePath)+".tmp-*")
	if err != nil {
		return &entity.IOError{Op: "create archive", Path: archivePath, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := writeZip(ctx, tmp, dir, base); err != nil {
		tmp.Close()
		return &entity.IOError{Op: "write archive", Path: archivePath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &entity.IOError{Op: "close archive", Path: archivePath, Err: err}
	}
	if err := os.Rename(tmpName, archivePath); err != nil {
		return &entity.IOError{Op: "rename archive", Path: archivePath, Err: err}
	}
	return nil
}

func writeZip(ctx context.Context, w io.Writer, dir, base string) error {
	zipWriter := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		if err := addFileToZip(zipWriter, path, filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("add %s to zip: %w", path, err)
		}
		return nil
	})
	if err != nil {
		zipWriter.Close()
		return err
	}
	return zipWriter.Close()
}

func addFileToZip(zw *zip.Writer, filename, name string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}

	header.Name = name
	header.Method = zip.Deflate

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, file)
	return err
}
