package farmlogix

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// zapTestLogger adapts a zap development logger to the runtime.Logger passed
// through every system call.
type zapTestLogger struct {
	sugar *zap.SugaredLogger
}

func newTestLogger() runtime.Logger {
	logger, _ := zap.NewDevelopment()
	return &zapTestLogger{sugar: logger.Sugar()}
}

func (l *zapTestLogger) Debug(format string, v ...interface{})                   { l.sugar.Debugf(format, v...) }
func (l *zapTestLogger) Info(format string, v ...interface{})                    { l.sugar.Infof(format, v...) }
func (l *zapTestLogger) Warn(format string, v ...interface{})                    { l.sugar.Warnf(format, v...) }
func (l *zapTestLogger) Error(format string, v ...interface{})                   { l.sugar.Errorf(format, v...) }
func (l *zapTestLogger) WithField(key string, value interface{}) runtime.Logger  { return l }
func (l *zapTestLogger) WithFields(fields map[string]interface{}) runtime.Logger { return l }
func (l *zapTestLogger) Fields() map[string]interface{}                          { return map[string]interface{}{} }

// memoryPersistence is an in-memory PersistenceCollaborator. failWrites makes
// every Set fail so write-failure paths can be exercised.
type memoryPersistence struct {
	sync.Mutex

	objects    map[string]string
	failWrites bool
	writes     int
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{objects: make(map[string]string)}
}

func storageObjectID(collection, key, ownerID string) string {
	return fmt.Sprintf("%s/%s/%s", collection, key, ownerID)
}

func (p *memoryPersistence) Get(ctx context.Context, collection, key, ownerID string) (string, bool, error) {
	p.Lock()
	defer p.Unlock()
	value, found := p.objects[storageObjectID(collection, key, ownerID)]
	return value, found, nil
}

func (p *memoryPersistence) Set(ctx context.Context, collection, key, ownerID, value string) error {
	p.Lock()
	defer p.Unlock()
	if p.failWrites {
		return fmt.Errorf("storage unavailable")
	}
	p.objects[storageObjectID(collection, key, ownerID)] = value
	p.writes++
	return nil
}

func (p *memoryPersistence) Delete(ctx context.Context, collection, key, ownerID string) error {
	p.Lock()
	defer p.Unlock()
	delete(p.objects, storageObjectID(collection, key, ownerID))
	return nil
}

func (p *memoryPersistence) setFailWrites(fail bool) {
	p.Lock()
	defer p.Unlock()
	p.failWrites = fail
}

func (p *memoryPersistence) writeCount() int {
	p.Lock()
	defer p.Unlock()
	return p.writes
}

// fakeClock is a manually advanced ClockCollaborator.
type fakeClock struct {
	sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.Lock()
	defer c.Unlock()
	c.now = c.now.Add(d)
}

type mockEconomy struct {
	mock.Mock
}

func (m *mockEconomy) AddCurrency(ctx context.Context, playerID string, amount int64) error {
	args := m.Called(ctx, playerID, amount)
	return args.Error(0)
}

func (m *mockEconomy) AddExperience(ctx context.Context, playerID string, amount int64) error {
	args := m.Called(ctx, playerID, amount)
	return args.Error(0)
}

func (m *mockEconomy) AddPremiumCurrency(ctx context.Context, playerID string, amount int64) error {
	args := m.Called(ctx, playerID, amount)
	return args.Error(0)
}

type mockInventory struct {
	mock.Mock
}

func (m *mockInventory) AddItem(ctx context.Context, playerID, itemID string, quantity int64) error {
	args := m.Called(ctx, playerID, itemID, quantity)
	return args.Error(0)
}

type mockIdentity struct {
	mock.Mock
}

func (m *mockIdentity) UnlockTitle(ctx context.Context, playerID, titleID string) error {
	args := m.Called(ctx, playerID, titleID)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, playerID, subject, message string, classification int) error {
	args := m.Called(ctx, playerID, subject, message, classification)
	return args.Error(0)
}

func (m *mockNotifier) Broadcast(ctx context.Context, subject, message string, classification int) error {
	args := m.Called(ctx, subject, message, classification)
	return args.Error(0)
}

// quietNotifier is used by tests that do not assert on notifications.
type quietNotifier struct{}

func (quietNotifier) Notify(ctx context.Context, playerID, subject, message string, classification int) error {
	return nil
}

func (quietNotifier) Broadcast(ctx context.Context, subject, message string, classification int) error {
	return nil
}
