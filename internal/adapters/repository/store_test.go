package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/hackjudge/internal/adapters/repository"
	"github.com/okian/hackjudge/pkg/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Init()
	os.Exit(m.Run())
}

// contract runs the behaviour every Store implementation must share.
func contract(t *testing.T, name string, store repository.Store) {
	ctx := context.Background()
	// Unique collection per run so shared servers do not leak state.
	col := repository.EventCollection("test-"+uuid.NewString(), repository.CollectionJudges)

	Convey("Given the "+name+" store", t, func() {
		Convey("When a missing document is read or deleted", func() {
			_, err := store.Get(ctx, col, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(store.Delete(ctx, col, "nobody"), repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a document is put, merged and replaced", func() {
			So(store.Put(ctx, col, "j1", repository.Document{"name": "Ada", "isAdmin": false, "n": 1}, repository.Replace), ShouldBeNil)
			So(store.Put(ctx, col, "j1", repository.Document{"n": 2}, repository.Merge), ShouldBeNil)

			doc, err := store.Get(ctx, col, "j1")
			So(err, ShouldBeNil)
			So(doc["name"], ShouldEqual, "Ada")
			So(doc["n"], ShouldEqual, 2.0)

			So(store.Put(ctx, col, "j1", repository.Document{"name": "Grace"}, repository.Replace), ShouldBeNil)
			doc, err = store.Get(ctx, col, "j1")
			So(err, ShouldBeNil)
			So(doc, ShouldResemble, repository.Document{"name": "Grace"})

			So(store.Delete(ctx, col, "j1"), ShouldBeNil)
		})

		Convey("When documents are listed with filters and ordering", func() {
			for id, doc := range map[string]repository.Document{
				"a": {"track": "web", "score": 3, "isAdmin": false},
				"b": {"track": "web", "score": 5, "isAdmin": true},
				"c": {"track": "ai", "score": 4, "isAdmin": false},
				"d": {"track": "web"},
			} {
				So(store.Put(ctx, col, id, doc, repository.Replace), ShouldBeNil)
			}

			all, err := store.List(ctx, col, repository.Query{})
			So(err, ShouldBeNil)
			So(ids(all), ShouldResemble, []string{"a", "b", "c", "d"})

			web, err := store.List(ctx, col, repository.Query{}.Where("track", "web").Where("isAdmin", false))
			So(err, ShouldBeNil)
			So(ids(web), ShouldResemble, []string{"a"})

			byScore, err := store.List(ctx, col, repository.Query{
				OrderBy: &repository.Order{Field: "score", Desc: true},
				Limit:   3,
			})
			So(err, ShouldBeNil)
			So(ids(byScore), ShouldResemble, []string{"b", "c", "a"})

			_, err = store.List(ctx, col, repository.Query{}.Where("bad field", 1))
			So(errors.Is(err, repository.ErrInvalidQuery), ShouldBeTrue)

			for _, id := range []string{"a", "b", "c", "d"} {
				So(store.Delete(ctx, col, id), ShouldBeNil)
			}
		})

		Convey("When a transactional update creates, skips and rewrites", func() {
			doc, err := store.TransactionalUpdate(ctx, col, "t1", func(cur repository.Document, exists bool) (repository.Document, error) {
				So(exists, ShouldBeFalse)
				return repository.Document{"count": 1}, nil
			})
			So(err, ShouldBeNil)
			So(doc["count"], ShouldEqual, 1.0)

			doc, err = store.TransactionalUpdate(ctx, col, "t1", func(cur repository.Document, exists bool) (repository.Document, error) {
				return nil, repository.ErrSkipWrite
			})
			So(err, ShouldBeNil)
			So(doc["count"], ShouldEqual, 1.0)

			boom := errors.New("boom")
			_, err = store.TransactionalUpdate(ctx, col, "t1", func(repository.Document, bool) (repository.Document, error) {
				return nil, boom
			})
			So(errors.Is(err, boom), ShouldBeTrue)

			So(store.Delete(ctx, col, "t1"), ShouldBeNil)
		})

		Convey("When many writers increment the same document", func() {
			const writers = 8
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = store.TransactionalUpdate(ctx, col, "ctr", func(cur repository.Document, _ bool) (repository.Document, error) {
						n, _ := cur["n"].(float64)
						return repository.Document{"n": n + 1}, nil
					})
				}()
			}
			wg.Wait()

			Convey("Then no increment is lost", func() {
				doc, err := store.Get(ctx, col, "ctr")
				So(err, ShouldBeNil)
				So(doc["n"], ShouldEqual, float64(writers))
				So(store.Delete(ctx, col, "ctr"), ShouldBeNil)
			})
		})

		So(store.Ping(ctx), ShouldBeNil)
	})
}

func ids(records []repository.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStore(t *testing.T) {
	contract(t, "memory", repository.Instrument(repository.NewMemoryStore(), "memory"))
}

func TestMemoryStoreIsolation(t *testing.T) {
	Convey("Given a stored document", t, func() {
		ctx := context.Background()
		m := repository.NewMemoryStore()
		in := repository.Document{"tags": []any{"a"}}
		So(m.Put(ctx, "c", "x", in, repository.Replace), ShouldBeNil)

		Convey("Then mutating the caller's map does not reach the store", func() {
			in["tags"] = []any{"b"}
			got, err := m.Get(ctx, "c", "x")
			So(err, ShouldBeNil)
			So(got["tags"], ShouldResemble, []any{"a"})
			So(m.Version("c", "x"), ShouldEqual, 1)
		})

		Convey("Then a closed store fails its ping", func() {
			So(m.Close(), ShouldBeNil)
			So(m.Ping(ctx), ShouldNotBeNil)
		})
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("HACKJUDGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HACKJUDGE_TEST_POSTGRES_DSN not set")
	}
	store, err := repository.NewPostgresStore(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	contract(t, "postgres", store)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("HACKJUDGE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("HACKJUDGE_TEST_REDIS_ADDR not set")
	}
	store, err := repository.NewRedisStore(context.Background(), repository.RedisConfig{Addr: addr},
		repository.WithKeyPrefix("hackjudge-test"), repository.WithMaxRetries(64))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	contract(t, "redis", store)
}
