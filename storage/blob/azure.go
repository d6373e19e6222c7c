// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/gorse-io/nextitem/config"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

// AzureBlob stores blobs as block blobs of a container.
type AzureBlob struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzureBlob connects with a connection string, or with an account name and key.
func NewAzureBlob(cfg config.AzureBlobConfig) (*AzureBlob, error) {
	var (
		client *azblob.Client
		err    error
	)
	switch {
	case cfg.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	case cfg.AccountName != "" && cfg.AccountKey != "":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
		}
		var cred *azblob.SharedKeyCredential
		if cred, err = azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey); err != nil {
			return nil, errors.Trace(err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	default:
		return nil, errors.NotValidf("azure blob without account_name and account_key or connection_string")
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &AzureBlob{client: client, container: cfg.Container, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

func (a *AzureBlob) blobName(name string) string {
	return path.Join(a.prefix, name)
}

func (a *AzureBlob) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, a.blobName(name), nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil, errors.NotFoundf("blob %s", name)
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	return resp.Body, nil
}

// Create stages blocks while bytes arrive and commits the block list at the
// end, so a failed upload leaves no blob behind.
func (a *AzureBlob) Create(ctx context.Context, name string) (*Writer, error) {
	blobName := a.blobName(name)
	return newWriter(ctx, func(ctx context.Context, r io.Reader) error {
		_, err := a.client.UploadStream(ctx, a.container, blobName, r, nil)
		return errors.Annotatef(err, "upload %s to container %s", blobName, a.container)
	}), nil
}

func (a *AzureBlob) List(ctx context.Context) ([]Info, error) {
	var (
		blobs  []Info
		prefix string
	)
	if a.prefix != "" {
		prefix = a.prefix + "/"
	}
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: lo.EmptyableToPtr(prefix)})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, item := range resp.Segment.BlobItems {
			info := Info{Name: strings.TrimPrefix(lo.FromPtr(item.Name), prefix)}
			if item.Properties != nil {
				info.Size = lo.FromPtr(item.Properties.ContentLength)
				info.Modified = lo.FromPtr(item.Properties.LastModified)
			}
			blobs = append(blobs, info)
		}
	}
	return blobs, nil
}

func (a *AzureBlob) Remove(ctx context.Context, name string) error {
	_, err := a.client.DeleteBlob(ctx, a.container, a.blobName(name), nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return errors.NotFoundf("blob %s", name)
	}
	return errors.Trace(err)
}
