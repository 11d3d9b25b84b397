package release

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/mutker/wvasim/internal/errors"
	"codeberg.org/mutker/wvasim/internal/logger"
)

const (
	DefaultProductID = "82003335"
	archiveFilePerm  = 0o644
)

type Config struct {
	Root      string // tree to package
	OutDir    string // where the archive is written
	ProductID string
	PartLabel string
	Title     []string
	Rules     Rules
}

func DefaultConfig() Config {
	return Config{
		Root:      ".",
		OutDir:    ".",
		ProductID: DefaultProductID,
		PartLabel: "Digi Part Number",
		Title: []string{
			"Digi Wireless Vehicle Bus Adapter Sample Android Application",
			"Source code for Eclipse project",
		},
		Rules: DefaultRules(),
	}
}

// Result describes a written archive.
type Result struct {
	Path     string
	Files    []string
	Manifest Manifest
}

// Builder packages a source tree into a release archive.
type Builder struct {
	cfg Config
	vcs VCS
	log logger.Logger
}

func NewBuilder(cfg Config, vcs VCS, log logger.Logger) *Builder {
	return &Builder{cfg: cfg, vcs: vcs, log: log.With("release")}
}

// ArchiveName is <ProductID>_<rev>.zip.
func (b *Builder) ArchiveName(rev string) string {
	return b.cfg.ProductID + "_" + rev + ".zip"
}

// Build writes the archive for rev. An existing archive of the same name
// is never touched: Build fails with ErrArchiveCollision instead. On any
// other failure the partial archive is removed.
func (b *Builder) Build(ctx context.Context, rev string) (Result, error) {
	errFactory := errors.New()

	if rev == "" || strings.ContainsAny(rev, `/\`) || rev == "." || rev == ".." {
		return Result{}, errFactory.WithData(ErrInvalidRevision, rev)
	}

	path := filepath.Join(b.cfg.OutDir, b.ArchiveName(rev))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, archiveFilePerm)
	if err != nil {
		if os.IsExist(err) {
			return Result{}, errFactory.WithData(ErrArchiveCollision, path)
		}
		return Result{}, errFactory.Wrap(ErrWriteArchive, err)
	}

	res, err := b.write(ctx, f, rev)
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = errFactory.Wrap(ErrWriteArchive, closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			b.log.Warn().Err(rmErr).Str("path", path).Msg("Failed to remove partial archive")
		}
		return Result{}, err
	}

	res.Path = path
	b.log.Info().
		Str("path", path).
		Int("files", len(res.Files)).
		Str("commit", res.Manifest.Commit).
		Msg("Archive written")
	return res, nil
}

func (b *Builder) write(ctx context.Context, f *os.File, rev string) (Result, error) {
	errFactory := errors.New()

	manifest := Manifest{
		Title:     b.cfg.Title,
		PartLabel: b.cfg.PartLabel,
		ProductID: b.cfg.ProductID,
		Revision:  rev,
	}
	commit, err := b.vcs.ShortCommit(ctx)
	if err != nil {
		b.log.Warn().Err(err).Msg("Commit unavailable, the manifest will not name one")
	} else {
		manifest.Commit = commit
	}

	files, err := Scan(b.cfg.Root, b.cfg.Rules)
	if err != nil {
		return Result{}, err
	}

	zw := zip.NewWriter(f)

	w, err := zw.Create(ManifestName)
	if err != nil {
		return Result{}, errFactory.Wrap(ErrWriteArchive, err)
	}
	if _, err := io.WriteString(w, manifest.String()); err != nil {
		return Result{}, errFactory.Wrap(ErrWriteArchive, err)
	}

	packed := make([]string, 0, len(files))
	for _, rel := range files {
		if rel == ManifestName {
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, errFactory.Wrap(ErrWriteArchive, err)
		}

		b.log.Debug().Str("file", rel).Msg("Processing file")
		if err := addFile(zw, filepath.Join(b.cfg.Root, filepath.FromSlash(rel)), rel); err != nil {
			return Result{}, errFactory.Wrap(ErrWriteArchive, err)
		}
		packed = append(packed, rel)
	}

	if err := zw.Close(); err != nil {
		return Result{}, errFactory.Wrap(ErrWriteArchive, err)
	}

	return Result{Files: packed, Manifest: manifest}, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, src)
	return err
}
