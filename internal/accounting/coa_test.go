package accounting

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	client Client
}

func (r stubResolver) ClientFor(ctx context.Context, companyID uuid.UUID) (Client, error) {
	return r.client, nil
}

type countingClient struct {
	Client
	calls int
}

func (c *countingClient) GetAccounts(ctx context.Context) ([]Account, error) {
	c.calls++
	return c.Client.GetAccounts(ctx)
}

func (c *countingClient) GetAccountsByType(ctx context.Context, accountType AccountType) ([]Account, error) {
	c.calls++
	return c.Client.GetAccountsByType(ctx, accountType)
}

type failingClient struct{}

func (failingClient) GetAccounts(ctx context.Context) ([]Account, error) {
	return nil, errors.New("provider unreachable")
}

func (failingClient) GetAccountsByType(ctx context.Context, accountType AccountType) ([]Account, error) {
	return nil, errors.New("provider unreachable")
}

func (failingClient) GetAccountByID(ctx context.Context, accountID string) (*Account, error) {
	return nil, errors.New("provider unreachable")
}

func (failingClient) CreateJournalEntry(ctx context.Context, entry JournalEntry) (JournalResult, error) {
	return JournalResult{}, errors.New("provider unreachable")
}

func (failingClient) TestConnection(ctx context.Context) (bool, error) {
	return false, nil
}

func TestGetPaymentAccountsFiltersBankAndCash(t *testing.T) {
	ctx := context.Background()
	svc := NewCOAService(NewClientFactory(nil), nil, slog.Default())

	accounts := svc.GetPaymentAccounts(ctx, uuid.New())
	require.NotEmpty(t, accounts)
	for _, acc := range accounts {
		require.Equal(t, AccountTypeAsset, acc.Type)
		require.Contains(t, []AccountSubType{SubTypeBank, SubTypeCash}, acc.SubType)
	}
}

func TestGetAllAccountsUsesCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	counting := &countingClient{Client: NewSampleClient()}
	svc := NewCOAService(stubResolver{client: counting}, rdb, slog.Default())
	companyID := uuid.New()

	first := svc.GetAllAccounts(ctx, companyID)
	second := svc.GetAllAccounts(ctx, companyID)
	require.Equal(t, first, second)
	require.Equal(t, 1, counting.calls)
}

func TestInvalidateCacheForcesRefetch(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	counting := &countingClient{Client: NewSampleClient()}
	svc := NewCOAService(stubResolver{client: counting}, rdb, slog.Default())
	companyID := uuid.New()

	svc.GetAllAccounts(ctx, companyID)
	svc.InvalidateCache(ctx, companyID)
	svc.GetAllAccounts(ctx, companyID)
	require.Equal(t, 2, counting.calls)
}

func TestInvalidateCacheScopedToCompany(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	counting := &countingClient{Client: NewSampleClient()}
	svc := NewCOAService(stubResolver{client: counting}, rdb, slog.Default())
	companyA := uuid.New()
	companyB := uuid.New()

	svc.GetAllAccounts(ctx, companyA)
	svc.GetAllAccounts(ctx, companyB)
	require.Equal(t, 2, counting.calls)

	svc.InvalidateCache(ctx, companyA)
	svc.GetAllAccounts(ctx, companyB)
	require.Equal(t, 2, counting.calls, "company B cache must survive company A invalidation")
}

func TestProviderFailureDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	svc := NewCOAService(stubResolver{client: failingClient{}}, nil, slog.Default())

	accounts := svc.GetExpenseAccounts(ctx, uuid.New())
	require.NotNil(t, accounts)
	require.Empty(t, accounts)
}

func TestGetAccountByID(t *testing.T) {
	ctx := context.Background()
	svc := NewCOAService(NewClientFactory(nil), nil, slog.Default())
	companyID := uuid.New()

	acc := svc.GetAccountByID(ctx, companyID, "1002")
	require.NotNil(t, acc)
	require.Equal(t, "HBL Current Account", acc.Name)

	require.Nil(t, svc.GetAccountByID(ctx, companyID, "9999"))
}

func TestSearchAccounts(t *testing.T) {
	ctx := context.Background()
	svc := NewCOAService(NewClientFactory(nil), nil, slog.Default())
	companyID := uuid.New()

	hits := svc.SearchAccounts(ctx, companyID, "bank")
	require.NotEmpty(t, hits)
	for _, acc := range hits {
		match := strings.Contains(strings.ToLower(acc.Name), "bank") ||
			strings.Contains(strings.ToLower(acc.Code), "bank")
		require.True(t, match, "unexpected hit %q", acc.Name)
	}
}
