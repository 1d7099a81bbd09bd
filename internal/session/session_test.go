package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"schedulink/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetPreferences(ctx context.Context, profile string) (models.Preferences, bool, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(models.Preferences), args.Bool(1), args.Error(2)
}

func (m *MockStore) SavePreferences(ctx context.Context, prefs models.Preferences) error {
	args := m.Called(ctx, prefs)
	return args.Error(0)
}

func TestManager_LoadOnceAndPersistOnChange(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	defaults := models.DefaultPreferences("chat:1")

	store.On("GetPreferences", ctx, "chat:1").Return(defaults, false, nil).Once()
	store.On("SavePreferences", ctx, mock.MatchedBy(func(p models.Preferences) bool {
		return p.Theme == models.ThemeDark && p.Role == models.RoleGuest
	})).Return(nil).Once()

	m := NewManager(store, nil)

	p, err := m.Load(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, p.Theme)

	isNew, err := m.IsNewUser(ctx, "chat:1")
	require.NoError(t, err)
	assert.True(t, isNew)

	p, err = m.ToggleTheme(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, p.Theme)

	p, err = m.Load(ctx, "chat:1")
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, p.Theme)

	store.AssertExpectations(t)
}

func TestManager_SaveFailureKeepsOldValue(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	boom := errors.New("readonly database")

	store.On("GetPreferences", ctx, "p").Return(models.DefaultPreferences("p"), false, nil)
	store.On("SavePreferences", ctx, mock.Anything).Return(boom)

	m := NewManager(store, nil)
	_, err := m.SetRole(ctx, "p", models.RoleMaster)
	assert.ErrorIs(t, err, boom)

	p, err := m.Load(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, models.RoleGuest, p.Role)
}

func TestManager_LoadError(t *testing.T) {
	store := new(MockStore)
	ctx := context.Background()
	boom := errors.New("locked")
	store.On("GetPreferences", ctx, "p").Return(models.Preferences{}, false, boom)

	_, err := NewManager(store, nil).Load(ctx, "p")
	assert.ErrorIs(t, err, boom)
}

func TestManager_WelcomeFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := NewManager(store, nil)

	isNew, err := m.IsNewUser(ctx, "cli")
	require.NoError(t, err)
	assert.True(t, isNew)

	p, err := m.Complete(ctx, "cli", models.RoleMaster)
	require.NoError(t, err)
	assert.True(t, p.Visited)
	assert.Equal(t, models.RoleMaster, p.Role)

	// A fresh manager over the same store sees the persisted state.
	m2 := NewManager(store, nil)
	isNew, err = m2.IsNewUser(ctx, "cli")
	require.NoError(t, err)
	assert.False(t, isNew)
	p, err = m2.Load(ctx, "cli")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMaster, p.Role)
}

func TestManager_RejectsUnknownValues(t *testing.T) {
	m := NewManager(NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := m.SetRole(ctx, "p", models.Role("admin"))
	assert.Error(t, err)
	_, err = m.SetTheme(ctx, "p", models.Theme("neon"))
	assert.Error(t, err)
	_, err = m.Complete(ctx, "p", models.Role(""))
	assert.Error(t, err)

	p, err := m.SetTheme(ctx, "p", models.ThemeDark)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, p.Theme)

	p, err = m.MarkVisited(ctx, "p")
	require.NoError(t, err)
	assert.True(t, p.Visited)

	m.Forget("p")
	p, err = m.Load(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, models.ThemeDark, p.Theme)
}
