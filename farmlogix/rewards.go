package farmlogix

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RewardPayload is a sparse grant description. Absent fields are skipped;
// partial payloads are normal.
type RewardPayload struct {
	Coins           int64  `json:"coins,omitempty"`
	Xp              int64  `json:"xp,omitempty"`
	PremiumCurrency int64  `json:"premium_currency,omitempty"`
	ItemId          string `json:"item_id,omitempty"`
	ItemQuantity    int64  `json:"item_quantity,omitempty"`
	TitleId         string `json:"title_id,omitempty"`
}

// Empty reports whether the payload grants nothing.
func (p *RewardPayload) Empty() bool {
	if p == nil {
		return true
	}
	return p.Coins == 0 && p.Xp == 0 && p.PremiumCurrency == 0 && p.ItemId == "" && p.TitleId == ""
}

// RewardDispatcher fans a reward payload out to the economy, inventory and
// identity collaborators. Grants are fire-and-forget: a failing sub-grant is
// logged with player context and never rolls back the unlock that triggered
// it, nor the other sub-grants.
type RewardDispatcher struct {
	economy   EconomyCollaborator
	inventory InventoryCollaborator
	identity  IdentityCollaborator
}

func NewRewardDispatcher(economy EconomyCollaborator, inventory InventoryCollaborator, identity IdentityCollaborator) *RewardDispatcher {
	return &RewardDispatcher{
		economy:   economy,
		inventory: inventory,
		identity:  identity,
	}
}

// Grant invokes exactly one collaborator call per present payload field.
func (d *RewardDispatcher) Grant(ctx context.Context, logger runtime.Logger, playerID string, payload *RewardPayload) {
	if payload.Empty() {
		return
	}

	if payload.Coins > 0 {
		if err := d.economy.AddCurrency(ctx, playerID, payload.Coins); err != nil {
			logger.Error("Failed to grant %d coins to player %s: %v", payload.Coins, playerID, err)
		}
	}
	if payload.Xp > 0 {
		if err := d.economy.AddExperience(ctx, playerID, payload.Xp); err != nil {
			logger.Error("Failed to grant %d xp to player %s: %v", payload.Xp, playerID, err)
		}
	}
	if payload.PremiumCurrency > 0 {
		if err := d.economy.AddPremiumCurrency(ctx, playerID, payload.PremiumCurrency); err != nil {
			logger.Error("Failed to grant %d premium currency to player %s: %v", payload.PremiumCurrency, playerID, err)
		}
	}
	if payload.ItemId != "" {
		quantity := payload.ItemQuantity
		if quantity <= 0 {
			quantity = 1
		}
		if err := d.inventory.AddItem(ctx, playerID, payload.ItemId, quantity); err != nil {
			logger.Error("Failed to grant item %s x%d to player %s: %v", payload.ItemId, quantity, playerID, err)
		}
	}
	if payload.TitleId != "" {
		if err := d.identity.UnlockTitle(ctx, playerID, payload.TitleId); err != nil {
			logger.Error("Failed to grant title %s to player %s: %v", payload.TitleId, playerID, err)
		}
	}
}
