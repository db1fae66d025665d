package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"mintgate/internal/sale/models"
	"mintgate/pkg/platform/sentinel"
)

// maxClaimAttempts bounds WATCH retries. Every aborted attempt means another
// writer committed, so a claim only runs out when that many writers race it.
const maxClaimAttempts = 32

const (
	fieldPhase       = "phase"
	fieldTotalIssued = "total_issued"
	fieldEarlyIssued = "early_issued"
)

// RedisStateStore keeps sale state in three hashes sharing one hash tag so a
// claim can be applied in a single MULTI/EXEC, including on Redis Cluster.
type RedisStateStore struct {
	client   redis.UniversalClient
	stateKey string
	earlyKey string
	openKey  string
}

// NewRedis constructs a Redis-backed state store for one sale.
func NewRedis(client redis.UniversalClient, saleID string) *RedisStateStore {
	prefix := "mintgate:{" + saleID + "}:"
	return &RedisStateStore{
		client:   client,
		stateKey: prefix + "state",
		earlyKey: prefix + "early",
		openKey:  prefix + "open",
	}
}

func (s *RedisStateStore) Load(ctx context.Context) (*models.State, error) {
	var stateCmd, earlyCmd, openCmd *redis.MapStringStringCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		stateCmd = pipe.HGetAll(ctx, s.stateKey)
		earlyCmd = pipe.HGetAll(ctx, s.earlyKey)
		openCmd = pipe.HGetAll(ctx, s.openKey)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load sale state: %w", err)
	}

	fields := stateCmd.Val()
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}

	state := models.NewState()
	phase, err := parseCounter(fields, fieldPhase)
	if err != nil {
		return nil, err
	}
	state.Phase = models.Phase(phase)
	if state.TotalIssued, err = parseCounter(fields, fieldTotalIssued); err != nil {
		return nil, err
	}
	if state.EarlyIssued, err = parseCounter(fields, fieldEarlyIssued); err != nil {
		return nil, err
	}

	for raw := range earlyCmd.Val() {
		n, err := parseCounter(earlyCmd.Val(), raw)
		if err != nil {
			return nil, err
		}
		addr := common.HexToAddress(raw)
		claims := state.Addresses[addr]
		claims.Early = n
		state.Addresses[addr] = claims
	}
	for raw := range openCmd.Val() {
		n, err := parseCounter(openCmd.Val(), raw)
		if err != nil {
			return nil, err
		}
		addr := common.HexToAddress(raw)
		claims := state.Addresses[addr]
		claims.Open = n
		state.Addresses[addr] = claims
	}
	return state, nil
}

// ApplyClaim checks the delta against the persisted phase and counters under
// WATCH and applies it in one MULTI/EXEC. A concurrent write to the watched
// keys aborts the EXEC and the claim is re-checked from scratch.
func (s *RedisStateStore) ApplyClaim(ctx context.Context, delta models.ClaimDelta) (models.ClaimResult, error) {
	if err := claimable(delta); err != nil {
		return models.ClaimResult{}, err
	}
	addrKey := s.openKey
	if delta.Phase == models.PhaseEarly {
		addrKey = s.earlyKey
	}

	var result models.ClaimResult
	apply := func(rtx *redis.Tx) error {
		current, err := s.readForClaim(ctx, rtx, addrKey, delta)
		if err != nil {
			return err
		}
		if err := current.Check(delta); err != nil {
			return err
		}

		// Check bounds every counter by limits that fit in int64.
		qty := int64(delta.Quantity)
		member := delta.Address.Hex()
		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSetNX(ctx, s.stateKey, fieldEarlyIssued, 0)
			pipe.HIncrBy(ctx, s.stateKey, fieldTotalIssued, qty)
			if delta.Phase == models.PhaseEarly {
				pipe.HIncrBy(ctx, s.stateKey, fieldEarlyIssued, qty)
			}
			pipe.HIncrBy(ctx, addrKey, member, qty)
			return nil
		})
		if err != nil {
			return err
		}
		current.Apply(delta)
		result = current.Result(delta.Address)
		return nil
	}

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		err := s.client.Watch(ctx, apply, s.stateKey, addrKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		var claimErr *models.ClaimError
		if errors.As(err, &claimErr) {
			return models.ClaimResult{}, err
		}
		if err != nil {
			return models.ClaimResult{}, fmt.Errorf("apply claim: %w", err)
		}
		return result, nil
	}
	return models.ClaimResult{}, fmt.Errorf("apply claim after %d attempts: %w", maxClaimAttempts, sentinel.ErrConflict)
}

// readForClaim reads the counters a claim by delta.Address is checked against.
// A sale that was never written reads as closed.
func (s *RedisStateStore) readForClaim(ctx context.Context, rtx *redis.Tx, addrKey string, delta models.ClaimDelta) (*models.State, error) {
	fields, err := rtx.HGetAll(ctx, s.stateKey).Result()
	if err != nil {
		return nil, err
	}
	current := models.NewState()
	phase, err := parseCounter(fields, fieldPhase)
	if err != nil {
		return nil, err
	}
	current.Phase = models.Phase(phase)
	if current.TotalIssued, err = parseCounter(fields, fieldTotalIssued); err != nil {
		return nil, err
	}
	if current.EarlyIssued, err = parseCounter(fields, fieldEarlyIssued); err != nil {
		return nil, err
	}

	member := delta.Address.Hex()
	raw, err := rtx.HGet(ctx, addrKey, member).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return current, nil
	case err != nil:
		return nil, err
	}
	n, err := parseCounter(map[string]string{member: raw}, member)
	if err != nil {
		return nil, err
	}
	claims := current.Addresses[delta.Address]
	if delta.Phase == models.PhaseEarly {
		claims.Early = n
	} else {
		claims.Open = n
	}
	current.Addresses[delta.Address] = claims
	return current, nil
}

func (s *RedisStateStore) SetPhase(ctx context.Context, phase models.Phase) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.stateKey, fieldPhase, int(phase))
		pipe.HSetNX(ctx, s.stateKey, fieldTotalIssued, 0)
		pipe.HSetNX(ctx, s.stateKey, fieldEarlyIssued, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set sale phase: %w", err)
	}
	return nil
}

func parseCounter(fields map[string]string, key string) (uint64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, raw, sentinel.ErrInvalidState)
	}
	return n, nil
}
