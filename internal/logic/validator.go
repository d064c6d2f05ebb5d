package logic

import (
	"fmt"

	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/moves"
	"github.com/talgya/outpost/internal/params"
)

// ValidateState runs the offline consistency check over the loaded
// state. It is pure: nothing is mutated. The first violated invariant
// is returned as an error naming the broken rule; tests and the
// daemon's self-check mode key off these diagnostics.
func ValidateState(t *moves.Tables, height uint64) error {
	if err := validateAccounts(t); err != nil {
		return err
	}
	if err := validateCharacters(t); err != nil {
		return err
	}
	if err := validateBuildings(t, height); err != nil {
		return err
	}
	if err := validateOngoings(t); err != nil {
		return err
	}
	if err := validateRegions(t); err != nil {
		return err
	}
	if err := validateDexOrders(t); err != nil {
		return err
	}
	if err := validateMoneySupply(t); err != nil {
		return err
	}
	return nil
}

func validateAccounts(t *moves.Tables) error {
	for _, name := range t.Accounts.QueryAllNames() {
		a := t.Accounts.GetByName(name)
		balance := a.GetBalance()
		a.Release()
		if balance < 0 {
			return fmt.Errorf("account %q has negative balance", name)
		}
	}
	return nil
}

func validateCharacters(t *moves.Tables) error {
	for _, id := range t.Characters.QueryAllIds() {
		c := t.Characters.GetById(id)
		err := func() error {
			a := t.Accounts.GetByName(c.GetOwner())
			if a == nil {
				return fmt.Errorf(
					"character %d refers to non-existing account %q",
					id, c.GetOwner())
			}
			defer a.Release()
			if a.GetFaction() != c.GetFaction() {
				return fmt.Errorf("Faction mismatch between character %d"+
					" and account %q", id, c.GetOwner())
			}

			if c.IsInBuilding() {
				b := t.Buildings.GetById(c.GetBuildingId())
				if b == nil {
					return fmt.Errorf(
						"character %d is in non-existing building %d",
						id, c.GetBuildingId())
				}
				b.Release()
			}

			proto := c.GetProto()
			if used := proto.Inventory.UsedSpace(t.Params); used > proto.CargoSpace {
				return fmt.Errorf("character %d exceeds cargo space", id)
			}

			if c.IsBusy() != (c.GetOngoingId() != 0) {
				return fmt.Errorf(
					"character %d busy flag does not match ongoing", id)
			}
			return nil
		}()
		c.Release()
		if err != nil {
			return err
		}
	}

	for _, name := range t.Accounts.QueryAllNames() {
		if t.Characters.CountForOwner(name) > t.Params.CharacterLimit {
			return fmt.Errorf("account %q exceeds the character limit", name)
		}
	}
	return nil
}

func validateBuildings(t *moves.Tables, height uint64) error {
	for _, id := range t.Buildings.QueryAllIds() {
		b := t.Buildings.GetById(id)
		err := func() error {
			if b.GetFaction() == faction.Ancient {
				if b.GetOwner() != "" {
					return fmt.Errorf("ancient building %d has an owner", id)
				}
			} else if b.GetOwner() != "" {
				a := t.Accounts.GetByName(b.GetOwner())
				if a == nil {
					return fmt.Errorf(
						"building %d refers to non-existing account %q",
						id, b.GetOwner())
				}
				ownerFaction := a.GetFaction()
				a.Release()
				if ownerFaction != b.GetFaction() {
					return fmt.Errorf("Faction mismatch between building %d"+
						" and account %q", id, b.GetOwner())
				}
			}

			age := b.GetProto().Age
			if age.FoundedHeight > height {
				return fmt.Errorf("building %d founded in the future", id)
			}
			if b.IsFoundation() {
				if age.FinishedHeight != nil {
					return fmt.Errorf(
						"foundation %d has a finished height", id)
				}
			} else {
				if age.FinishedHeight == nil {
					return fmt.Errorf(
						"building %d is finished without finished height", id)
				}
				if *age.FinishedHeight < age.FoundedHeight ||
					*age.FinishedHeight > height {
					return fmt.Errorf(
						"building %d finished outside its lifetime", id)
				}
			}
			return nil
		}()
		b.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func validateOngoings(t *moves.Tables) error {
	for _, id := range t.Ongoings.QueryAllIds() {
		op := t.Ongoings.GetById(id)
		charId := op.GetCharacterId()
		buildingId := op.GetBuildingId()
		op.Release()

		if (charId == 0) == (buildingId == 0) {
			return fmt.Errorf(
				"ongoing %d does not have exactly one carrier", id)
		}

		if charId != 0 {
			c := t.Characters.GetById(charId)
			if c == nil {
				return fmt.Errorf(
					"ongoing %d refers to non-existing character", id)
			}
			backRef := c.GetOngoingId()
			c.Release()
			if backRef != id {
				return fmt.Errorf(
					"character %d does not back-reference ongoing %d",
					charId, id)
			}
		} else {
			b := t.Buildings.GetById(buildingId)
			if b == nil {
				return fmt.Errorf(
					"ongoing %d refers to non-existing building", id)
			}
			backRef := b.GetOngoingId()
			b.Release()
			if backRef != id {
				return fmt.Errorf(
					"building %d does not back-reference ongoing %d",
					buildingId, id)
			}
		}
	}
	return nil
}

func validateRegions(t *moves.Tables) error {
	prospectors := make(map[uint64]uint64)

	for _, id := range t.Regions.QueryAllIds() {
		r := t.Regions.GetById(id)
		prospector := r.GetProto().ProspectingCharacter
		hasProspection := r.GetProto().Prospection != nil
		resourceLeft := r.GetResourceLeft()
		r.Release()

		if resourceLeft > 0 && !hasProspection {
			return fmt.Errorf("region %d has resources without prospection",
				id)
		}

		if prospector == 0 {
			continue
		}
		if prev, seen := prospectors[prospector]; seen {
			return fmt.Errorf(
				"character %d prospects both region %d and region %d",
				prospector, prev, id)
		}
		prospectors[prospector] = id

		c := t.Characters.GetById(prospector)
		if c == nil {
			return fmt.Errorf("region %d refers to non-existing character",
				id)
		}
		err := func() error {
			if !c.IsBusy() || c.GetOngoingId() == 0 {
				return fmt.Errorf(
					"prospecting character %d is not busy", prospector)
			}
			op := t.Ongoings.GetById(c.GetOngoingId())
			if op == nil {
				return fmt.Errorf(
					"character %d refers to non-existing ongoing",
					prospector)
			}
			defer op.Release()
			prospection := op.GetProto().Prospection
			if prospection == nil || prospection.RegionId != id {
				return fmt.Errorf(
					"character %d is not prospecting region %d",
					prospector, id)
			}
			if t.Map.RegionForHex(c.GetPosition()) != id {
				return fmt.Errorf(
					"prospecting character %d stands outside region %d",
					prospector, id)
			}
			return nil
		}()
		c.Release()
		if err != nil {
			return err
		}
	}
	return nil
}

func validateDexOrders(t *moves.Tables) error {
	for _, row := range t.DexOrders.QueryAll() {
		a := t.Accounts.GetByName(row.Account)
		if a == nil {
			return fmt.Errorf("order %d refers to non-existing account",
				row.Id)
		}
		a.Release()

		b := t.Buildings.GetById(row.Building)
		if b == nil {
			return fmt.Errorf("order %d refers to non-existing building",
				row.Id)
		}
		foundation := b.IsFoundation()
		b.Release()
		if foundation {
			return fmt.Errorf("order %d rests in a foundation", row.Id)
		}
	}
	return nil
}

// validateMoneySupply checks that every coin in circulation is
// accounted for: balances plus bid reservations equal the coins that
// ever entered circulation minus the burnt ones.
func validateMoneySupply(t *moves.Tables) error {
	var inAccounts params.Amount
	for _, name := range t.Accounts.QueryAllNames() {
		a := t.Accounts.GetByName(name)
		inAccounts += a.GetBalance()
		a.Release()
	}

	var reserved params.Amount
	for _, amount := range t.DexOrders.ReservedCoins() {
		reserved += amount
	}

	total := t.Money.GetBurnsaleSold() + t.Money.GetGifted()
	spent := t.Money.GetBurnt()

	if inAccounts+reserved+spent != total {
		return fmt.Errorf("money supply mismatch: %d in accounts, %d"+
			" reserved, %d burnt, %d total",
			inAccounts, reserved, spent, total)
	}
	return nil
}
