package treereplace

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const backupTimestampLayout = "20060102_150405"

// Backup packages the entire root subtree into a deflate-compressed zip
// written beside the root, named with the root's base name and a
// second-resolution timestamp. Entry paths are relative to the root's
// parent so unpacking the archive reproduces the root directory by name.
func Backup(ctx context.Context, rootPath, prefix string) (string, error) {
	rootPath = filepath.Clean(rootPath)
	name := fmt.Sprintf("%s_%s_%s.zip", prefix, filepath.Base(rootPath), time.Now().Format(backupTimestampLayout))
	zipPath := filepath.Join(filepath.Dir(rootPath), name)

	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create backup archive: %w", err)
	}

	zw := zip.NewWriter(f)
	err = packTree(ctx, zw, rootPath, filepath.Base(rootPath))
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(zipPath)
		return "", fmt.Errorf("write backup archive: %w", err)
	}

	abs, err := filepath.Abs(zipPath)
	if err != nil {
		return zipPath, nil
	}
	return abs, nil
}

// Pack writes a zip of dir's contents to w, with entry paths relative to
// dir itself so the archive's root-level layout matches the directory.
func Pack(ctx context.Context, dir string, w io.Writer) error {
	zw := zip.NewWriter(w)
	if err := packTree(ctx, zw, dir, ""); err != nil {
		_ = zw.Close()
		return err
	}
	return zw.Close()
}

func packTree(ctx context.Context, zw *zip.Writer, dir, topLevel string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == "." {
			return nil
		}
		entryName := path.Join(topLevel, filepath.ToSlash(rel))

		info, err := d.Info()
		if err != nil {
			return nil
		}

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = entryName

		if d.IsDir() {
			header.Name += "/"
			_, err = zw.CreateHeader(header)
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		header.Method = zip.Deflate
		wr, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		_, err = io.Copy(wr, f)
		_ = f.Close()
		return err
	})
}

// Extract unpacks a zip archive into dest. Entries with absolute paths or
// paths escaping dest are rejected before anything is written.
func Extract(ctx context.Context, r io.ReaderAt, size int64, dest string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("invalid archive: %w", err)
	}

	for _, f := range zr.File {
		if _, err := safeEntryPath(dest, f.Name); err != nil {
			return err
		}
	}

	for _, f := range zr.File {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		target, err := safeEntryPath(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract %s: %w", f.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	return err
}

func safeEntryPath(dest, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("invalid archive: empty entry name")
	}

	p := filepath.FromSlash(name)
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("invalid archive: absolute entry path %q", name)
	}

	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid archive: entry path escapes root %q", name)
	}

	return filepath.Join(dest, clean), nil
}
