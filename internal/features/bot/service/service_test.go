package service

import (
	"context"
	"sync"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zagip/zagip-game/internal/common/cache"
	"github.com/zagip/zagip-game/internal/domain"
	referral "github.com/zagip/zagip-game/internal/features/referral/service"
	"github.com/zagip/zagip-game/internal/platform/memory"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []*telego.SendMessageParams
}

func (f *fakeSender) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return &telego.Message{}, nil
}

func (f *fakeSender) last(t *testing.T) *telego.SendMessageParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	store   *memory.Store
	pending *referral.Pending
	sender  *fakeSender
	svc     *Service
}

func newFixture(admins ...int64) *fixture {
	store := memory.NewStore()
	pending := referral.NewPending(cache.NewMemoryKV(), 0)
	sender := &fakeSender{}
	svc := NewService(store, pending, sender, Options{
		WebAppURL:      "https://game.example",
		AdminWebAppURL: "https://game.example/admin",
		IsAdmin: func(id int64) bool {
			for _, a := range admins {
				if a == id {
					return true
				}
			}
			return false
		},
	})
	return &fixture{store: store, pending: pending, sender: sender, svc: svc}
}

func message(from int64, text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		Text: text,
		From: &telego.User{ID: from},
		Chat: telego.Chat{ID: from},
	}}
}

func buttons(t *testing.T, p *telego.SendMessageParams) []telego.InlineKeyboardButton {
	t.Helper()
	kb, ok := p.ReplyMarkup.(*telego.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	return kb.InlineKeyboard[0]
}

func TestStartPayload(t *testing.T) {
	tests := []struct {
		text    string
		payload string
		ok      bool
	}{
		{"/start 42", "42", true},
		{"/start@zagip_bot 42", "42", true},
		{"/start", "", false},
		{"/help 42", "", false},
		{"hello", "", false},
	}
	for _, tt := range tests {
		p, ok := startPayload(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.payload, p, tt.text)
	}
}

func TestStartRecordsPendingReferral(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.svc.HandleUpdate(ctx, message(100, "/start 7"))

	ref, ok, err := f.pending.Claim(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), ref)

	p := f.sender.last(t)
	assert.Equal(t, int64(100), p.ChatID.ID)
	row := buttons(t, p)
	require.Len(t, row, 1)
	require.NotNil(t, row[0].WebApp)
	assert.Equal(t, "https://game.example", row[0].WebApp.URL)
}

func TestStartIgnoresInvalidReferrers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	for _, text := range []string{"/start abc", "/start -5", "/start 100"} {
		f.svc.HandleUpdate(ctx, message(100, text))
		_, ok, err := f.pending.Claim(ctx, 100)
		require.NoError(t, err)
		assert.False(t, ok, text)
	}
	assert.Len(t, f.sender.sent, 3)
}

func TestStartSkipsExistingUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.CreateUser(ctx, &domain.User{TelegramID: 100, Role: domain.RoleUser})
	}))

	f.svc.HandleUpdate(ctx, message(100, "/start 7"))

	_, ok, err := f.pending.Claim(ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.sender.sent, 1)
}

func TestAdminsGetSecondButton(t *testing.T) {
	ctx := context.Background()
	f := newFixture(500)
	require.NoError(t, f.store.InTx(ctx, func(tx domain.Tx) error {
		return tx.CreateUser(ctx, &domain.User{TelegramID: 600, Role: domain.RoleAdmin})
	}))

	f.svc.HandleUpdate(ctx, message(500, "hi"))
	assert.Len(t, buttons(t, f.sender.last(t)), 2)

	f.svc.HandleUpdate(ctx, message(600, "/start"))
	row := buttons(t, f.sender.last(t))
	require.Len(t, row, 2)
	assert.Equal(t, "https://game.example/admin", row[1].WebApp.URL)

	f.svc.HandleUpdate(ctx, message(700, "hi"))
	assert.Len(t, buttons(t, f.sender.last(t)), 1)
}

func TestNonTextUpdatesAreIgnored(t *testing.T) {
	f := newFixture()
	f.svc.HandleUpdate(context.Background(), telego.Update{})
	f.svc.HandleUpdate(context.Background(), telego.Update{Message: &telego.Message{Chat: telego.Chat{ID: 1}}})
	assert.Empty(t, f.sender.sent)
}
