package botmgr

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/internal/pkg/botrunner"
)

type fakeBotRepo struct {
	bots      map[uint]*models.Bot
	nextID    uint
	updateErr error
}

func newFakeBotRepo() *fakeBotRepo {
	return &fakeBotRepo{bots: map[uint]*models.Bot{}}
}

func (r *fakeBotRepo) Create(bot *models.Bot) error {
	r.nextID++
	bot.ID = r.nextID
	cp := *bot
	r.bots[bot.ID] = &cp
	return nil
}

func (r *fakeBotRepo) CreateWithinQuota(bot *models.Bot, maxSlots int) (bool, error) {
	count, _ := r.CountByUserID(bot.UserID)
	if count >= int64(maxSlots) {
		return false, nil
	}
	return true, r.Create(bot)
}

func (r *fakeBotRepo) GetByID(id uint) (*models.Bot, error) {
	if b, ok := r.bots[id]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBotRepo) GetByUUID(uuid string) (*models.Bot, error) {
	for _, b := range r.bots {
		if b.UUID == uuid {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBotRepo) GetByUserID(userID uint) ([]models.Bot, error) {
	var out []models.Bot
	for _, b := range r.bots {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *fakeBotRepo) Update(bot *models.Bot) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.bots[bot.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *bot
	r.bots[bot.ID] = &cp
	return nil
}

func (r *fakeBotRepo) UpdateStatus(id uint, status string) error {
	b, ok := r.bots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.Status = status
	return nil
}

func (r *fakeBotRepo) Delete(id uint) error {
	delete(r.bots, id)
	return nil
}

func (r *fakeBotRepo) Count() (int64, error) {
	return int64(len(r.bots)), nil
}

func (r *fakeBotRepo) CountByUserID(userID uint) (int64, error) {
	var n int64
	for _, b := range r.bots {
		if b.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *fakeBotRepo) CountRunning() (int64, error) {
	var n int64
	for _, b := range r.bots {
		if b.Status == models.BotStatusRunning {
			n++
		}
	}
	return n, nil
}

// fakeGateway records calls and can be told to fail per operation.
type fakeGateway struct {
	deployErr error
	startErr  error
	stopErr   error
	deleteErr error

	deployed []string
	deleted  []string
	infos    map[string]*botrunner.BotInfo
}

func (g *fakeGateway) Deploy(ctx context.Context, botUUID, code string) error {
	if g.deployErr != nil {
		return g.deployErr
	}
	g.deployed = append(g.deployed, botUUID)
	return nil
}

func (g *fakeGateway) Start(ctx context.Context, botUUID string) error { return g.startErr }
func (g *fakeGateway) Stop(ctx context.Context, botUUID string) error  { return g.stopErr }

func (g *fakeGateway) Delete(ctx context.Context, botUUID string) error {
	if g.deleteErr != nil {
		return g.deleteErr
	}
	g.deleted = append(g.deleted, botUUID)
	return nil
}

func (g *fakeGateway) Info(ctx context.Context, botUUID string) (*botrunner.BotInfo, error) {
	if info, ok := g.infos[botUUID]; ok {
		return info, nil
	}
	return nil, botrunner.ErrBotUnknown
}

func (g *fakeGateway) Stats(ctx context.Context, botUUID string) (*botrunner.BotStats, error) {
	return &botrunner.BotStats{BotUUID: botUUID}, nil
}

func (g *fakeGateway) Logs(ctx context.Context, botUUID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("data: hello\n\n")), nil
}

func freePlan(userID uint) (string, error) { return "free", nil }
func proPlan(userID uint) (string, error)  { return "pro", nil }

func TestCreateWithinQuota(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{}
	svc := NewService(repo, gw, freePlan)
	ctx := context.Background()

	bot, err := svc.Create(ctx, 1, "first", "print('hi')")
	require.NoError(t, err)
	assert.Equal(t, models.BotStatusRunning, bot.Status)
	assert.NotNil(t, bot.LastDeployedAt)
	assert.Len(t, gw.deployed, 1)

	// Free plan holds one slot; the second create must not mutate anything.
	_, err = svc.Create(ctx, 1, "second", "print('hi')")
	require.ErrorIs(t, err, ErrQuotaExceeded)

	count, _ := repo.CountByUserID(1)
	assert.Equal(t, int64(1), count)
}

func TestCreateQuotaIsPerUser(t *testing.T) {
	repo := newFakeBotRepo()
	svc := NewService(repo, &fakeGateway{}, freePlan)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "alpha", "code")
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, "beta", "code")
	require.NoError(t, err)
}

func TestCreateProPlanQuota(t *testing.T) {
	repo := newFakeBotRepo()
	svc := NewService(repo, &fakeGateway{}, proPlan)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Create(ctx, 1, "bot", "code")
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, 1, "bot", "code")
	require.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestCreateRollsBackOnDeployFailure(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{deployErr: botrunner.ErrBackendUnavailable}
	svc := NewService(repo, gw, freePlan)

	_, err := svc.Create(context.Background(), 1, "bot", "code")
	require.ErrorIs(t, err, ErrDeploymentFailed)

	// All-or-nothing: no orphaned record survives a failed deploy.
	count, _ := repo.CountByUserID(1)
	assert.Equal(t, int64(0), count)

	// The freed slot is usable again once the backend recovers.
	gw.deployErr = nil
	_, err = svc.Create(context.Background(), 1, "bot", "code")
	require.NoError(t, err)
}

func TestCreateRollsBackOnStatusWriteFailure(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{}
	svc := NewService(repo, gw, freePlan)

	boom := errors.New("write failed")
	repo.updateErr = boom

	_, err := svc.Create(context.Background(), 1, "bot", "code")
	require.ErrorIs(t, err, boom)

	// The deployed remote process is torn down with the record.
	count, _ := repo.CountByUserID(1)
	assert.Equal(t, int64(0), count)
	require.Len(t, gw.deployed, 1)
	require.Len(t, gw.deleted, 1)
	assert.Equal(t, gw.deployed[0], gw.deleted[0])
}

func TestCreateStatusWriteFailureEnqueuesCleanup(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{deleteErr: botrunner.ErrBackendUnavailable}
	svc := NewService(repo, gw, freePlan)

	var cleanupUUIDs []string
	svc.EnqueueCleanup = func(botUUID string) { cleanupUUIDs = append(cleanupUUIDs, botUUID) }

	repo.updateErr = errors.New("write failed")

	_, err := svc.Create(context.Background(), 1, "bot", "code")
	require.Error(t, err)

	// Remote teardown failed too, so the orphan is reconciled out-of-band.
	require.Len(t, cleanupUUIDs, 1)
	assert.Equal(t, gw.deployed[0], cleanupUUIDs[0])
}

func TestCreateRequiresAuthentication(t *testing.T) {
	svc := NewService(newFakeBotRepo(), &fakeGateway{}, freePlan)
	_, err := svc.Create(context.Background(), 0, "bot", "code")
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	repo := newFakeBotRepo()
	svc := NewService(repo, &fakeGateway{}, freePlan)

	_, err := svc.Create(context.Background(), 1, "", "code")
	require.Error(t, err)
	_, err = svc.Create(context.Background(), 1, "bot", "")
	require.Error(t, err)

	count, _ := repo.Count()
	assert.Equal(t, int64(0), count)
}

func TestStartStopWriteStatusOnlyAfterGatewaySuccess(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{}
	svc := NewService(repo, gw, freePlan)
	ctx := context.Background()

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	require.NoError(t, svc.Stop(ctx, 1, bot.ID))
	stored, _ := repo.GetByID(bot.ID)
	assert.Equal(t, models.BotStatusStopped, stored.Status)

	// A failing gateway call must leave the cached status untouched.
	gw.startErr = botrunner.ErrBackendUnavailable
	err = svc.Start(ctx, 1, bot.ID)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	stored, _ = repo.GetByID(bot.ID)
	assert.Equal(t, models.BotStatusStopped, stored.Status)

	gw.startErr = nil
	require.NoError(t, svc.Start(ctx, 1, bot.ID))
	stored, _ = repo.GetByID(bot.ID)
	assert.Equal(t, models.BotStatusRunning, stored.Status)
}

func TestDeleteIsRecordFirst(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{deleteErr: botrunner.ErrBackendUnavailable}
	svc := NewService(repo, gw, freePlan)
	ctx := context.Background()

	var cleanupUUIDs []string
	svc.EnqueueCleanup = func(botUUID string) { cleanupUUIDs = append(cleanupUUIDs, botUUID) }

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	// Delete succeeds even though the runner is unreachable.
	require.NoError(t, svc.Delete(ctx, 1, bot.ID))

	_, err = repo.GetByID(bot.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Len(t, cleanupUUIDs, 1)
	assert.Equal(t, bot.UUID, cleanupUUIDs[0])
}

func TestGetByIDOwnership(t *testing.T) {
	repo := newFakeBotRepo()
	svc := NewService(repo, &fakeGateway{}, freePlan)
	ctx := context.Background()

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	got, err := svc.GetByID(1, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, bot.UUID, got.UUID)

	// Foreign owner gets NotAuthorized, never the record.
	got, err = svc.GetByID(2, bot.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)
	assert.Nil(t, got)

	_, err = svc.GetByID(1, 999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.GetByID(0, bot.ID)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestLogsEnforceOwnership(t *testing.T) {
	repo := newFakeBotRepo()
	svc := NewService(repo, &fakeGateway{}, freePlan)
	ctx := context.Background()

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	_, err = svc.Logs(ctx, 2, bot.ID)
	require.ErrorIs(t, err, ErrNotAuthorized)

	stream, err := svc.Logs(ctx, 1, bot.ID)
	require.NoError(t, err)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data: hello")
}

func TestInfoRefreshesStaleStatus(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{infos: map[string]*botrunner.BotInfo{}}
	svc := NewService(repo, gw, freePlan)
	ctx := context.Background()

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	// Runner says the bot crashed; the cached running status is stale.
	gw.infos[bot.UUID] = &botrunner.BotInfo{BotUUID: bot.UUID, State: "error", LastError: "exit 1"}

	info, err := svc.Info(ctx, 1, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, "error", info.State)

	stored, _ := repo.GetByID(bot.ID)
	assert.Equal(t, models.BotStatusError, stored.Status)
}

func TestReconcileStatus(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{infos: map[string]*botrunner.BotInfo{}}
	svc := NewService(repo, gw, freePlan)
	ctx := context.Background()

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	gw.infos[bot.UUID] = &botrunner.BotInfo{BotUUID: bot.UUID, State: "stopped"}
	require.NoError(t, svc.ReconcileStatus(ctx, bot.UUID))
	stored, _ := repo.GetByID(bot.ID)
	assert.Equal(t, models.BotStatusStopped, stored.Status)

	// Runner lost the bot entirely.
	delete(gw.infos, bot.UUID)
	require.NoError(t, svc.ReconcileStatus(ctx, bot.UUID))
	stored, _ = repo.GetByID(bot.ID)
	assert.Equal(t, models.BotStatusError, stored.Status)

	// Unknown UUID is a no-op, the record may have been deleted meanwhile.
	require.NoError(t, svc.ReconcileStatus(ctx, "does-not-exist"))
}

func TestReconcileStatusNotifiesCrash(t *testing.T) {
	repo := newFakeBotRepo()
	gw := &fakeGateway{infos: map[string]*botrunner.BotInfo{}}
	svc := NewService(repo, gw, freePlan)
	ctx := context.Background()

	var crashed []string
	svc.OnCrash = func(bot *models.Bot, lastError string) {
		crashed = append(crashed, bot.UUID+": "+lastError)
	}

	bot, err := svc.Create(ctx, 1, "bot", "code")
	require.NoError(t, err)

	// Running -> error triggers the crash hook.
	gw.infos[bot.UUID] = &botrunner.BotInfo{BotUUID: bot.UUID, State: "crashed", LastError: "exit status 1"}
	require.NoError(t, svc.ReconcileStatus(ctx, bot.UUID))
	require.Len(t, crashed, 1)
	assert.Equal(t, bot.UUID+": exit status 1", crashed[0])

	// Already in error state, no repeat notification.
	require.NoError(t, svc.ReconcileStatus(ctx, bot.UUID))
	assert.Len(t, crashed, 1)
}

func TestListRequiresAuthentication(t *testing.T) {
	svc := NewService(newFakeBotRepo(), &fakeGateway{}, freePlan)
	_, err := svc.List(0)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCreateSurfacesPlanResolverError(t *testing.T) {
	boom := errors.New("settings lookup failed")
	svc := NewService(newFakeBotRepo(), &fakeGateway{}, func(uint) (string, error) { return "", boom })

	_, err := svc.Create(context.Background(), 1, "bot", "code")
	require.ErrorIs(t, err, boom)
}
