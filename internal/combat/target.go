// Package combat implements target acquisition, damage application,
// kill processing, fame and regeneration. All iteration runs in the
// canonical (kind, id) order so RNG draws line up on every node.
package combat

import (
	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/rnd"
)

// effectiveRange applies the active range effects to a base range,
// floored at zero.
func effectiveRange(base int, fx db.Effects) int {
	r := base + base*int(fx.RangePct)/100
	if r < 0 {
		return 0
	}
	return r
}

// AcquireTargets runs target acquisition for every armed fighter. A
// fighter picks uniformly among the strictly closest eligible
// candidates; with none in range, the target is cleared.
func AcquireTargets(fighters *db.FightersTable, r *rnd.Rnd) {
	for _, fid := range fighters.QueryWithAttacks() {
		f := fighters.GetById(fid)
		if !f.Exists() {
			panic("combat: armed fighter vanished during targeting")
		}

		// Characters tucked away inside a building neither attack
		// nor get attacked.
		if fid.Kind == db.KindCharacter && f.IsInsideBuilding() {
			f.ClearTarget()
			f.Release()
			continue
		}

		cd := f.GetCombatData()
		maxRange := effectiveRange(cd.MaxRange(), f.GetEffects())
		wantFriendly := cd.HasFriendly()
		wantHostile := false
		for _, a := range cd.Attacks {
			if !a.Friendlies {
				wantHostile = true
				break
			}
		}

		pos := f.GetPosition()
		own := f.GetFaction()

		bestDist := -1
		var closest []db.TargetId
		for _, cand := range fighters.QueryCandidatesInRange(pos, maxRange) {
			if cand.Id == fid {
				continue
			}
			friendly := cand.Faction == own
			if friendly && !wantFriendly {
				continue
			}
			if !friendly && !wantHostile {
				continue
			}

			d := hex.DistanceL1(pos, cand.Pos)
			switch {
			case bestDist < 0 || d < bestDist:
				bestDist = d
				closest = closest[:0]
				closest = append(closest, cand.Id)
			case d == bestDist:
				closest = append(closest, cand.Id)
			}
		}

		if len(closest) == 0 {
			f.ClearTarget()
		} else {
			f.SetTarget(closest[r.NextInt(len(closest))])
		}
		f.Release()
	}
}

// PromoteEffects makes last block's staged effects the active ones and
// expires effects that were not refreshed. Runs at block start, before
// any phase reads effect-dependent values.
func PromoteEffects(fighters *db.FightersTable) {
	for _, fid := range fighters.QueryWithEffects() {
		f := fighters.GetById(fid)
		if !f.Exists() {
			panic("combat: fighter with effects vanished during promotion")
		}
		f.RotateEffects()
		f.Release()
	}
}
