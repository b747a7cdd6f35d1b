package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/hackjudge/internal/app"
	"github.com/okian/hackjudge/internal/config"
	"github.com/okian/hackjudge/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

func TestWiring(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		convey.Convey("openStore falls back to the memory driver", func() {
			store, err := openStore(ctx, cfg.Store)
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.Ping(ctx), convey.ShouldBeNil)
			convey.So(store.Close(), convey.ShouldBeNil)
		})

		convey.Convey("openBlobs keeps images in memory without a dir", func() {
			blobs, files, err := openBlobs(cfg.Blob)
			convey.So(err, convey.ShouldBeNil)
			convey.So(blobs, convey.ShouldNotBeNil)
			convey.So(files, convey.ShouldBeNil)
		})

		convey.Convey("openBlobs serves a directory store", func() {
			bc := config.BlobConfig{Dir: t.TempDir(), BaseURL: "/files"}
			blobs, files, err := openBlobs(bc)
			convey.So(err, convey.ShouldBeNil)
			convey.So(files, convey.ShouldNotBeNil)

			url, err := blobs.Upload(ctx, "teams/rocket/shot.png", []byte("png"))
			convey.So(err, convey.ShouldBeNil)
			convey.So(strings.HasPrefix(url, "/files/"), convey.ShouldBeTrue)
		})

		convey.Convey("The HTTP server answers health checks", func() {
			cfg.Admin.Code = "BOSS"
			store, err := openStore(ctx, cfg.Store)
			convey.So(err, convey.ShouldBeNil)
			blobs, files, err := openBlobs(cfg.Blob)
			convey.So(err, convey.ShouldBeNil)

			svc := service.New(store,
				service.WithEventID(cfg.EventID),
				service.WithBlobStore(blobs),
				service.WithBootstrapAdmin(cfg.Admin.Name, cfg.Admin.Code),
			)
			convey.So(svc.Start(ctx), convey.ShouldBeNil)
			defer svc.Stop()

			srv := newHTTPServer(cfg, svc, files)
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)

			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", http.NoBody)
			req.Header.Set("Authorization", "Bearer boss")
			w = httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, req)
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Body.String(), convey.ShouldContainSubstring, `"role":"admin"`)
		})
	})
}
