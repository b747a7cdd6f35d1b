package blob_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hackjudge/internal/adapters/blob"
)

func TestObjectKey(t *testing.T) {
	Convey("Given a folder and a file name", t, func() {
		key, err := blob.ObjectKey("teams/codeinators", "Screen Shot.PNG")
		So(err, ShouldBeNil)
		So(key, ShouldStartWith, "teams/codeinators/")
		So(key, ShouldEndWith, ".png")

		Convey("Then traversal and empty folders are refused", func() {
			_, err := blob.ObjectKey("", "a.png")
			So(errors.Is(err, blob.ErrInvalidPath), ShouldBeTrue)
			key, err := blob.ObjectKey("../../etc", "passwd")
			So(err, ShouldBeNil)
			So(key, ShouldStartWith, "etc/")
		})
	})
}

func TestDirStore(t *testing.T) {
	Convey("Given a directory store", t, func() {
		ctx := context.Background()
		root := t.TempDir()
		store, err := blob.NewDirStore(root, "http://localhost:8080/files/", blob.WithMaxBytes(16))
		So(err, ShouldBeNil)

		Convey("When an image is uploaded", func() {
			url, err := store.Upload(ctx, "teams/jasc/logo.jpg", []byte("jpeg-bytes"))
			So(err, ShouldBeNil)
			So(url, ShouldStartWith, "http://localhost:8080/files/teams/jasc/")

			key := strings.TrimPrefix(url, "http://localhost:8080/files/")
			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "jpeg-bytes")

			Convey("Then it can be deleted once", func() {
				So(store.Delete(ctx, url), ShouldBeNil)
				So(errors.Is(store.Delete(ctx, url), blob.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the upload is too large or the url is foreign", func() {
			_, err := store.Upload(ctx, "teams/jasc/big.png", make([]byte, 17))
			So(errors.Is(err, blob.ErrTooLarge), ShouldBeTrue)
			So(errors.Is(store.Delete(ctx, "https://cdn.example.com/x.png"), blob.ErrForeignURL), ShouldBeTrue)
			So(errors.Is(store.Delete(ctx, "http://localhost:8080/files/../secret"), blob.ErrInvalidPath), ShouldBeTrue)
		})
	})
}

func TestMemoryStore(t *testing.T) {
	Convey("Given a memory store", t, func() {
		ctx := context.Background()
		store := blob.NewMemoryStore("mem://blobs")

		url, err := store.Upload(ctx, "teams/t1/a.png", []byte{1})
		So(err, ShouldBeNil)
		So(store.Len(), ShouldEqual, 1)
		So(store.Delete(ctx, url), ShouldBeNil)
		So(store.Len(), ShouldEqual, 0)
		So(errors.Is(store.Delete(ctx, url), blob.ErrNotFound), ShouldBeTrue)
	})
}
