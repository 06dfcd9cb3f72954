package kvstore

import (
	"context"
	"sync"

	"github.com/stretchr/testify/suite"

	"appshell/pkg/platform/sentinel"
)

// contractSuite exercises the behaviour every backend must share. Backend
// suites embed it and set newStore.
type contractSuite struct {
	suite.Suite
	newStore func() Store
}

func (s *contractSuite) TestGetMissingKey() {
	store := s.newStore()
	_, err := store.Get(context.Background(), "missing")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *contractSuite) TestSetThenGet() {
	ctx := context.Background()
	store := s.newStore()

	s.Require().NoError(store.Set(ctx, "auth-storess", `{"schema_version":1}`))
	got, err := store.Get(ctx, "auth-storess")
	s.Require().NoError(err)
	s.Equal(`{"schema_version":1}`, got)
}

func (s *contractSuite) TestSetOverwrites() {
	ctx := context.Background()
	store := s.newStore()

	s.Require().NoError(store.Set(ctx, "k", "first"))
	s.Require().NoError(store.Set(ctx, "k", "second"))
	got, err := store.Get(ctx, "k")
	s.Require().NoError(err)
	s.Equal("second", got)
}

func (s *contractSuite) TestRemove() {
	ctx := context.Background()
	store := s.newStore()

	s.Run("removes existing key", func() {
		s.Require().NoError(store.Set(ctx, "k", "v"))
		s.Require().NoError(store.Remove(ctx, "k"))
		_, err := store.Get(ctx, "k")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("removing missing key succeeds", func() {
		s.Require().NoError(store.Remove(ctx, "never-set"))
	})
}

func (s *contractSuite) TestKeysAreIndependent() {
	ctx := context.Background()
	store := s.newStore()

	s.Require().NoError(store.Set(ctx, "a", "1"))
	s.Require().NoError(store.Set(ctx, "b", "2"))
	s.Require().NoError(store.Remove(ctx, "a"))

	got, err := store.Get(ctx, "b")
	s.Require().NoError(err)
	s.Equal("2", got)
}

func (s *contractSuite) TestConcurrentWritesLeaveOneValue() {
	ctx := context.Background()
	store := s.newStore()

	values := []string{"v1", "v2", "v3", "v4", "v5", "v6", "v7", "v8"}
	var wg sync.WaitGroup
	for _, v := range values {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			s.NoError(store.Set(ctx, "k", v))
		}(v)
	}
	wg.Wait()

	got, err := store.Get(ctx, "k")
	s.Require().NoError(err)
	s.Contains(values, got)
}
