// Package archive extracts source distribution archives (zip and compressed
// tarballs) preserving their internal directory structure.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/pyforge/wheelhouse/internal/errors"
)

// Extract unpacks src into dest. Zip archives are handled by archive/zip;
// everything else is treated as a tarball whose compression is inferred from
// the file extension (.gz/.tgz, .bz2/.tbz2, or none).
func Extract(src, dest string, zipArchive bool) error {
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create extraction directory")
	}
	if zipArchive {
		return extractZip(src, dest)
	}
	return extractTar(src, dest)
}

// safeJoin joins name under dest and rejects entries escaping the
// destination. The lexical check catches plain ".." traversal; the final
// SecureJoin resolves through any symlinks extracted earlier, so a write
// path routed through a malicious link still lands inside dest.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", errors.New(errors.CategoryArchive, errors.SeverityError,
			fmt.Sprintf("archive entry has absolute path: %s", name))
	}
	target := filepath.Join(dest, name)
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", errors.New(errors.CategoryArchive, errors.SeverityError,
			fmt.Sprintf("archive entry escapes destination: %s", name))
	}
	return securejoin.SecureJoin(dest, name)
}

// checkLinkTarget rejects symlink entries whose target resolves outside the
// destination.
func checkLinkTarget(dest, name, linkname string) error {
	if filepath.IsAbs(linkname) {
		return errors.New(errors.CategoryArchive, errors.SeverityError,
			fmt.Sprintf("archive symlink %s has absolute target: %s", name, linkname))
	}
	resolved := filepath.Join(dest, filepath.Dir(name), linkname)
	if resolved != dest && !strings.HasPrefix(resolved, dest+string(os.PathSeparator)) {
		return errors.New(errors.CategoryArchive, errors.SeverityError,
			fmt.Sprintf("archive symlink %s escapes destination: %s", name, linkname))
	}
	return nil
}

func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return errors.WrapError(err, errors.CategoryArchive, "failed to open zip archive")
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o750); err != nil {
				return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory")
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory")
		}
		if err := writeZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func writeZipEntry(f *zip.File, target string) error {
	in, err := f.Open()
	if err != nil {
		return errors.WrapError(err, errors.CategoryArchive, "failed to read zip entry")
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(f.Mode()))
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create file")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.WrapError(err, errors.CategoryArchive,
			fmt.Sprintf("failed to extract %s", f.Name))
	}
	return out.Close()
}

func extractTar(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to open archive")
	}
	defer f.Close()

	var reader io.Reader = f
	switch {
	case strings.HasSuffix(src, ".gz") || strings.HasSuffix(src, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.WrapError(err, errors.CategoryArchive, "failed to open gzip stream")
		}
		defer gz.Close()
		reader = gz
	case strings.HasSuffix(src, ".bz2") || strings.HasSuffix(src, ".tbz2"):
		reader = bzip2.NewReader(f)
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.WrapError(err, errors.CategoryArchive, "failed to read tar entry")
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o750); err != nil {
				return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory")
			}
			if err := writeTarEntry(tr, hdr, target); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := checkLinkTarget(dest, hdr.Name, hdr.Linkname); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
				return errors.WrapError(err, errors.CategoryFileSystem, "failed to create directory")
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return errors.WrapError(err, errors.CategoryFileSystem, "failed to create symlink")
			}
		default:
			// Hard links, devices etc. don't appear in sdists; skip them.
		}
	}
	return nil
}

func writeTarEntry(tr *tar.Reader, hdr *tar.Header, target string) error {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entryMode(os.FileMode(hdr.Mode)))
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create file")
	}
	defer out.Close()

	if _, err := io.Copy(out, tr); err != nil {
		return errors.WrapError(err, errors.CategoryArchive,
			fmt.Sprintf("failed to extract %s", hdr.Name))
	}
	return out.Close()
}

// entryMode keeps the executable bit but never widens beyond owner/group access.
func entryMode(m os.FileMode) os.FileMode {
	if m&0o100 != 0 {
		return 0o750
	}
	return 0o640
}
