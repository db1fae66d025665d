//go:build integration

package state_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"mintgate/internal/sale/models"
	"mintgate/internal/sale/store/state"
	"mintgate/pkg/platform/sentinel"
	"mintgate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	storeContract
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = state.NewRedis(s.redis.Client, "integration")
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestSalesAreIsolated() {
	ctx := context.Background()
	other := state.NewRedis(s.redis.Client, "other")
	s.Require().NoError(other.SetPhase(ctx, models.PhaseOpen))
	_, err := other.ApplyClaim(ctx, claim(openBuyer, models.PhaseOpen, 3))
	s.Require().NoError(err)

	_, err = s.store.Load(ctx)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
