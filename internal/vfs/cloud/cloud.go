// Package cloud wraps an internal/vfs.FS so that files written to it
// are mirrored to S3 on Close/Sync. Intended for the VCS repository's
// local blob cache: a deployment wraps the vfs.FS it hands to vcs.New
// so that blobs materialized locally are durably mirrored off-box.
package cloud

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/colin353/corestore/internal/vfs"
)

// Options configures where mirrored objects land in S3.
type Options struct {
	Bucket     string
	BasePath   string
	Region     string
	SkipUpload func(name string) bool
}

func (o Options) skip(name string) bool {
	if o.SkipUpload != nil {
		return o.SkipUpload(name)
	}
	return strings.HasSuffix(name, ".tmp")
}

// FS wraps a local vfs.FS, mirroring every Create'd file's contents to
// S3 when it is synced or closed. Remove also deletes the mirrored S3
// object (a failed delete is logged, not returned) before removing the
// local file. Reads, Rename, and everything else pass straight through
// to the wrapped FS — S3 is a durability mirror here, not the source
// of truth.
type FS struct {
	base     vfs.FS
	options  Options
	uploader *s3manager.Uploader
	s3Client *s3.S3
}

// New wraps base with an S3 mirror described by options.
func New(base vfs.FS, options Options) (*FS, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(options.Region)})
	if err != nil {
		return nil, fmt.Errorf("cloud: open aws session: %w", err)
	}
	return &FS{
		base:     base,
		options:  options,
		uploader: s3manager.NewUploader(sess),
		s3Client: s3.New(sess),
	}, nil
}

func (f *FS) key(name string) string { return f.options.BasePath + "/" + name }

func (f *FS) Create(name string) (vfs.File, error) {
	file, err := f.base.Create(name)
	if err != nil {
		return nil, err
	}
	return &cloudFile{File: file, fs: f, name: name}, nil
}

func (f *FS) Open(name string) (vfs.File, error) { return f.base.Open(name) }

func (f *FS) Remove(name string) error {
	if _, err := f.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(f.options.Bucket),
		Key:    aws.String(f.key(name)),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "cloud: delete %s from s3: %v\n", name, err)
	}
	return f.base.Remove(name)
}

func (f *FS) Rename(oldname, newname string) error { return f.base.Rename(oldname, newname) }

func (f *FS) MkdirAll(dir string, perm os.FileMode) error { return f.base.MkdirAll(dir, perm) }

func (f *FS) List(dir string) ([]string, error) { return f.base.List(dir) }

func (f *FS) Stat(name string) (os.FileInfo, error) { return f.base.Stat(name) }

func (f *FS) PathJoin(elem ...string) string { return f.base.PathJoin(elem...) }

func (f *FS) Chtimes(name string, mtime time.Time) error { return f.base.Chtimes(name, mtime) }

func (f *FS) upload(file vfs.File, name string) error {
	if f.options.skip(name) {
		return nil
	}
	if seeker, ok := file.(interface{ Seek(int64, int) (int64, error) }); ok {
		if _, err := seeker.Seek(0, 0); err != nil {
			return fmt.Errorf("cloud: rewind %s for upload: %w", name, err)
		}
	}
	_, err := f.uploader.Upload(&s3manager.UploadInput{
		Body:   bufio.NewReader(file),
		Bucket: aws.String(f.options.Bucket),
		Key:    aws.String(f.key(name)),
	})
	if err != nil {
		return fmt.Errorf("cloud: upload %s: %w", name, err)
	}
	return nil
}
