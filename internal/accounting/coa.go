package accounting

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// coaTTL keeps accounts fresh enough for approval/payment screens without
// hammering the provider on every render.
const coaTTL = 10 * time.Minute

// COAService insulates journal construction and the payment screens from
// external-API latency. Every key carries the company id and a per-company
// version, so invalidation is a single counter bump and cross-company
// collisions are impossible by construction.
//
// The service degrades: when the provider or the cache is unreachable it
// returns an empty slice, never an error. Callers must read an empty list as
// "unknown", not as a company with zero accounts.
type COAService struct {
	resolver ClientResolver
	client   *redis.Client
	logger   *slog.Logger
	ttl      time.Duration
	group    singleflight.Group
}

// ClientResolver yields the accounting client for a company. Satisfied by
// *ClientFactory; tests substitute stubs.
type ClientResolver interface {
	ClientFor(ctx context.Context, companyID uuid.UUID) (Client, error)
}

// NewCOAService constructs the cache-backed chart-of-accounts service.
func NewCOAService(resolver ClientResolver, client *redis.Client, logger *slog.Logger) *COAService {
	return &COAService{resolver: resolver, client: client, logger: logger, ttl: coaTTL}
}

// GetAllAccounts returns every account the provider reports for the company.
func (s *COAService) GetAllAccounts(ctx context.Context, companyID uuid.UUID) []Account {
	return s.fetch(ctx, companyID, "all", func(ctx context.Context, client Client) ([]Account, error) {
		return client.GetAccounts(ctx)
	})
}

// GetExpenseAccounts returns accounts eligible as line-item expense targets.
func (s *COAService) GetExpenseAccounts(ctx context.Context, companyID uuid.UUID) []Account {
	return s.fetch(ctx, companyID, "expense", func(ctx context.Context, client Client) ([]Account, error) {
		return client.GetAccountsByType(ctx, AccountTypeExpense)
	})
}

// GetPaymentAccounts returns Bank and Cash asset accounts that can fund a payment.
func (s *COAService) GetPaymentAccounts(ctx context.Context, companyID uuid.UUID) []Account {
	return s.fetch(ctx, companyID, "payment", func(ctx context.Context, client Client) ([]Account, error) {
		assets, err := client.GetAccountsByType(ctx, AccountTypeAsset)
		if err != nil {
			return nil, err
		}
		var out []Account
		for _, acc := range assets {
			if acc.IsPaymentAccount() {
				out = append(out, acc)
			}
		}
		return out, nil
	})
}

// GetAccountsByType returns accounts of one ledger category.
func (s *COAService) GetAccountsByType(ctx context.Context, companyID uuid.UUID, accountType AccountType) []Account {
	shape := "type:" + string(accountType)
	return s.fetch(ctx, companyID, shape, func(ctx context.Context, client Client) ([]Account, error) {
		return client.GetAccountsByType(ctx, accountType)
	})
}

// GetAccountByID resolves one external account id, or nil when unknown.
func (s *COAService) GetAccountByID(ctx context.Context, companyID uuid.UUID, externalID string) *Account {
	for _, acc := range s.GetAllAccounts(ctx, companyID) {
		if acc.ExternalID == externalID {
			found := acc
			return &found
		}
	}
	return nil
}

// SearchAccounts filters the cached chart by name or code substring.
func (s *COAService) SearchAccounts(ctx context.Context, companyID uuid.UUID, term string) []Account {
	all := s.GetAllAccounts(ctx, companyID)
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all
	}
	var out []Account
	for _, acc := range all {
		if strings.Contains(strings.ToLower(acc.Name), term) || strings.Contains(strings.ToLower(acc.Code), term) {
			out = append(out, acc)
		}
	}
	return out
}

// InvalidateCache drops every cached shape for a company by bumping its
// version counter. Called after any operation that could change the external
// chart, such as reconnecting the integration.
func (s *COAService) InvalidateCache(ctx context.Context, companyID uuid.UUID) {
	if s.client == nil {
		return
	}
	if err := s.client.Incr(ctx, versionKey(companyID)).Err(); err != nil {
		s.logger.Warn("coa cache invalidate", slog.String("company_id", companyID.String()), slog.Any("error", err))
	}
}

func (s *COAService) fetch(ctx context.Context, companyID uuid.UUID, shape string, loader func(context.Context, Client) ([]Account, error)) []Account {
	key := s.buildKey(ctx, companyID, shape)

	if s.client != nil {
		payload, err := s.client.Get(ctx, key).Bytes()
		if err == nil {
			var accounts []Account
			if err := json.Unmarshal(payload, &accounts); err == nil {
				return accounts
			}
		} else if err != redis.Nil {
			s.logger.Warn("coa cache read", slog.String("key", key), slog.Any("error", err))
		}
	}

	// Collapse concurrent misses for the same key into one provider call.
	value, err, _ := s.group.Do(key, func() (interface{}, error) {
		client, err := s.resolver.ClientFor(ctx, companyID)
		if err != nil {
			return nil, err
		}
		return loader(ctx, client)
	})
	if err != nil {
		s.logger.Error("coa fetch", slog.String("company_id", companyID.String()), slog.String("shape", shape), slog.Any("error", err))
		return []Account{}
	}
	accounts, _ := value.([]Account)
	if accounts == nil {
		accounts = []Account{}
	}

	if s.client != nil {
		if raw, err := json.Marshal(accounts); err == nil {
			if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("coa cache write", slog.String("key", key), slog.Any("error", err))
			}
		}
	}
	return accounts
}

func (s *COAService) buildKey(ctx context.Context, companyID uuid.UUID, shape string) string {
	var ver int64 = 1
	if s.client != nil {
		v, err := s.client.Get(ctx, versionKey(companyID)).Int64()
		if err == nil && v > 0 {
			ver = v
		} else if err == redis.Nil {
			_ = s.client.Set(ctx, versionKey(companyID), 1, 0).Err()
		}
	}
	return fmt.Sprintf("coa:%s:%d:%s", companyID, ver, shape)
}

func versionKey(companyID uuid.UUID) string {
	return fmt.Sprintf("coa:ver:%s", companyID)
}
