package farmlogix

import (
	"context"
	"encoding/json"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Collaborator interfaces cover the out-of-scope subsystems the engine calls
// into. Each engine component receives these at construction time so tests can
// substitute doubles.

// PersistenceCollaborator is an opaque key-value store with eventual-success
// semantics. Write failures are logged by callers and never propagated to
// gameplay code.
type PersistenceCollaborator interface {
	// Get returns the stored value for the owner's key, or found=false when absent.
	Get(ctx context.Context, collection, key, ownerID string) (value string, found bool, err error)

	// Set stores the value for the owner's key.
	Set(ctx context.Context, collection, key, ownerID, value string) error

	// Delete removes the owner's key.
	Delete(ctx context.Context, collection, key, ownerID string) error
}

// EconomyCollaborator grants soft currency, experience and premium currency.
type EconomyCollaborator interface {
	AddCurrency(ctx context.Context, playerID string, amount int64) error
	AddExperience(ctx context.Context, playerID string, amount int64) error
	AddPremiumCurrency(ctx context.Context, playerID string, amount int64) error
}

// InventoryCollaborator grants items into the player's inventory.
type InventoryCollaborator interface {
	AddItem(ctx context.Context, playerID, itemID string, quantity int64) error
}

// IdentityCollaborator unlocks cosmetic titles on the player's profile.
type IdentityCollaborator interface {
	UnlockTitle(ctx context.Context, playerID, titleID string) error
}

// NotificationCollaborator delivers fire-and-forget player messages. Rendering
// is out of scope.
type NotificationCollaborator interface {
	Notify(ctx context.Context, playerID, subject, message string, classification int) error
	Broadcast(ctx context.Context, subject, message string, classification int) error
}

// ClockCollaborator supplies wall-clock time for unlock timestamps, event
// windows and cooldowns.
type ClockCollaborator interface {
	Now() time.Time
}

// Notification classification codes, carried in the notification payload so
// the client can route the message to the right UI surface.
const (
	NotificationCodeUnlock         = 110
	NotificationCodeEventLifecycle = 111
	NotificationCodeCommunityGoal  = 112
	NotificationCodeReward         = 113
)

// nakamaPersistence implements PersistenceCollaborator on Nakama storage.
type nakamaPersistence struct {
	nk runtime.NakamaModule
}

func NewNakamaPersistence(nk runtime.NakamaModule) PersistenceCollaborator {
	return &nakamaPersistence{nk: nk}
}

func (p *nakamaPersistence) Get(ctx context.Context, collection, key, ownerID string) (string, bool, error) {
	objects, err := p.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: collection,
		Key:        key,
		UserID:     ownerID,
	}})
	if err != nil {
		return "", false, err
	}
	if len(objects) == 0 || objects[0].Value == "" {
		return "", false, nil
	}
	return objects[0].Value, true, nil
}

func (p *nakamaPersistence) Set(ctx context.Context, collection, key, ownerID, value string) error {
	_, err := p.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      collection,
		Key:             key,
		UserID:          ownerID,
		Value:           value,
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	return err
}

func (p *nakamaPersistence) Delete(ctx context.Context, collection, key, ownerID string) error {
	return p.nk.StorageDelete(ctx, []*runtime.StorageDelete{{
		Collection: collection,
		Key:        key,
		UserID:     ownerID,
	}})
}

// nakamaEconomy implements EconomyCollaborator on the Nakama wallet.
type nakamaEconomy struct {
	nk runtime.NakamaModule
}

func NewNakamaEconomy(nk runtime.NakamaModule) EconomyCollaborator {
	return &nakamaEconomy{nk: nk}
}

const (
	walletKeyCoins   = "coins"
	walletKeyXp      = "xp"
	walletKeyPremium = "gems"
)

func (e *nakamaEconomy) addWallet(ctx context.Context, playerID, key string, amount int64) error {
	_, _, err := e.nk.WalletUpdate(ctx, playerID, map[string]int64{key: amount}, map[string]interface{}{"source": "progress_engine"}, true)
	return err
}

func (e *nakamaEconomy) AddCurrency(ctx context.Context, playerID string, amount int64) error {
	return e.addWallet(ctx, playerID, walletKeyCoins, amount)
}

func (e *nakamaEconomy) AddExperience(ctx context.Context, playerID string, amount int64) error {
	return e.addWallet(ctx, playerID, walletKeyXp, amount)
}

func (e *nakamaEconomy) AddPremiumCurrency(ctx context.Context, playerID string, amount int64) error {
	return e.addWallet(ctx, playerID, walletKeyPremium, amount)
}

const (
	inventoryStorageCollection = "inventory"
	inventoryStorageKey        = "items"
)

// nakamaInventory implements InventoryCollaborator as a quantity map in the
// player's inventory storage object. The real item simulation lives outside
// the engine; this is only the grant edge.
type nakamaInventory struct {
	nk runtime.NakamaModule
}

func NewNakamaInventory(nk runtime.NakamaModule) InventoryCollaborator {
	return &nakamaInventory{nk: nk}
}

func (i *nakamaInventory) AddItem(ctx context.Context, playerID, itemID string, quantity int64) error {
	objects, err := i.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: inventoryStorageCollection,
		Key:        inventoryStorageKey,
		UserID:     playerID,
	}})
	if err != nil {
		return err
	}

	items := make(map[string]int64)
	version := ""
	if len(objects) > 0 && objects[0].Value != "" {
		if err := json.Unmarshal([]byte(objects[0].Value), &items); err != nil {
			return err
		}
		version = objects[0].Version
	}
	items[itemID] += quantity

	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = i.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      inventoryStorageCollection,
		Key:             inventoryStorageKey,
		UserID:          playerID,
		Value:           string(data),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	return err
}

const (
	titlesStorageCollection = "identity"
	titlesStorageKey        = "titles"
)

// nakamaIdentity implements IdentityCollaborator as a title set in the
// player's identity storage object.
type nakamaIdentity struct {
	nk runtime.NakamaModule
}

func NewNakamaIdentity(nk runtime.NakamaModule) IdentityCollaborator {
	return &nakamaIdentity{nk: nk}
}

func (id *nakamaIdentity) UnlockTitle(ctx context.Context, playerID, titleID string) error {
	objects, err := id.nk.StorageRead(ctx, []*runtime.StorageRead{{
		Collection: titlesStorageCollection,
		Key:        titlesStorageKey,
		UserID:     playerID,
	}})
	if err != nil {
		return err
	}

	titles := make(map[string]bool)
	version := ""
	if len(objects) > 0 && objects[0].Value != "" {
		if err := json.Unmarshal([]byte(objects[0].Value), &titles); err != nil {
			return err
		}
		version = objects[0].Version
	}
	if titles[titleID] {
		return nil
	}
	titles[titleID] = true

	data, err := json.Marshal(titles)
	if err != nil {
		return err
	}
	_, err = id.nk.StorageWrite(ctx, []*runtime.StorageWrite{{
		Collection:      titlesStorageCollection,
		Key:             titlesStorageKey,
		UserID:          playerID,
		Value:           string(data),
		Version:         version,
		PermissionRead:  runtime.STORAGE_PERMISSION_OWNER_READ,
		PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
	}})
	return err
}

// nakamaNotifier implements NotificationCollaborator on Nakama notifications.
type nakamaNotifier struct {
	nk runtime.NakamaModule
}

func NewNakamaNotifier(nk runtime.NakamaModule) NotificationCollaborator {
	return &nakamaNotifier{nk: nk}
}

func (n *nakamaNotifier) Notify(ctx context.Context, playerID, subject, message string, classification int) error {
	content := map[string]interface{}{"message": message}
	return n.nk.NotificationSend(ctx, playerID, subject, content, classification, "", false)
}

func (n *nakamaNotifier) Broadcast(ctx context.Context, subject, message string, classification int) error {
	content := map[string]interface{}{"message": message}
	return n.nk.NotificationSendAll(ctx, subject, content, classification, false)
}

type systemClock struct{}

// NewSystemClock returns a ClockCollaborator backed by the wall clock.
func NewSystemClock() ClockCollaborator {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}
