package cloud

import "github.com/colin353/corestore/internal/vfs"

// cloudFile mirrors its contents to S3 whenever it is synced or
// closed, so a file is off-box durable no later than the moment the
// writer considers it durable locally.
type cloudFile struct {
	vfs.File
	fs   *FS
	name string
}

func (c *cloudFile) Sync() error {
	if err := c.File.Sync(); err != nil {
		return err
	}
	return c.fs.upload(c.File, c.name)
}

func (c *cloudFile) Close() error {
	uploadErr := c.fs.upload(c.File, c.name)
	closeErr := c.File.Close()
	if uploadErr != nil {
		return uploadErr
	}
	return closeErr
}
