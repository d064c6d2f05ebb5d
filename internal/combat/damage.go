package combat

import (
	"sort"

	"github.com/talgya/outpost/internal/db"
	"github.com/talgya/outpost/internal/faction"
	"github.com/talgya/outpost/internal/hex"
	"github.com/talgya/outpost/internal/rnd"
)

// applyDamage reduces shield first, then armour. The shield milli-HP
// fraction is dropped when integer damage empties the shield. Returns
// true when the victim's HP reached zero.
func applyDamage(hp *db.HP, dmg uint32) bool {
	if dmg >= hp.Shield {
		dmg -= hp.Shield
		hp.Shield = 0
		hp.ShieldMhp = 0
	} else {
		hp.Shield -= dmg
		dmg = 0
	}

	if dmg >= hp.Armour {
		hp.Armour = 0
	} else {
		hp.Armour -= dmg
	}

	return hp.Armour == 0 && hp.Shield == 0
}

// DealDamage runs the damage phase: mentecon drain, then every attack
// of every armed fighter in (kind, id) order. It returns the fighters
// killed this block, in (kind, id) order, without removing them; the
// kill phase does that so that identity resolution stays stable here.
func DealDamage(fighters *db.FightersTable, dl *db.DamageLists,
	r *rnd.Rnd) []db.TargetId {
	killed := make(map[db.TargetId]bool)

	drainMentecon(fighters, killed)

	for _, fid := range fighters.QueryWithAttacks() {
		f := fighters.GetById(fid)
		if !f.Exists() {
			panic("combat: armed fighter vanished during damage")
		}
		if fid.Kind == db.KindCharacter && f.IsInsideBuilding() {
			f.Release()
			continue
		}

		cd := *f.GetCombatData()
		fx := f.GetEffects()
		pos := f.GetPosition()
		own := f.GetFaction()
		target := f.GetTarget()
		f.Release()

		for _, attack := range cd.Attacks {
			attackRange := effectiveRange(attack.Range, fx)

			if attack.Area > 0 {
				areaRange := effectiveRange(attack.Area, fx)
				dealAreaDamage(fighters, dl, r, fid, pos, own,
					attack, areaRange, killed)
				continue
			}

			if target == nil {
				continue
			}
			victim := fighters.GetById(*target)
			if !victim.Exists() {
				// The target may have been killed earlier in this
				// phase; dead fighters stay in the tables until the
				// kill phase, so this means a stale reference.
				panic("combat: target vanished during damage")
			}
			if hex.DistanceL1(pos, victim.GetPosition()) > attackRange {
				victim.Release()
				continue
			}

			hitFighter(victim, dl, r, fid, attack, killed)
			victim.Release()
		}
	}

	res := make([]db.TargetId, 0, len(killed))
	for id := range killed {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Less(res[j]) })
	return res
}

// dealAreaDamage applies one attack to every eligible entity within
// the area around the attacker.
func dealAreaDamage(fighters *db.FightersTable, dl *db.DamageLists,
	r *rnd.Rnd, attacker db.TargetId, centre hex.Coord,
	own faction.Faction, attack db.Attack, attackRange int,
	killed map[db.TargetId]bool) {
	// One roll per area attack, applied to each entity hit.
	var dmg uint32
	if attack.MaxDamage > 0 {
		dmg = rollDamage(r, attack)
	}

	for _, cand := range fighters.QueryCandidatesInRange(centre, attackRange) {
		if cand.Id == attacker {
			continue
		}
		friendly := cand.Faction == own
		if friendly != attack.Friendlies {
			continue
		}

		victim := fighters.GetById(cand.Id)
		if !victim.Exists() {
			panic("combat: area victim vanished during damage")
		}
		applyHit(victim, dl, attacker, attack, dmg, killed)
		victim.Release()
	}
}

// hitFighter rolls and applies a single-target attack.
func hitFighter(victim db.Fighter, dl *db.DamageLists, r *rnd.Rnd,
	attacker db.TargetId, attack db.Attack, killed map[db.TargetId]bool) {
	var dmg uint32
	if attack.MaxDamage > 0 {
		dmg = rollDamage(r, attack)
	}
	applyHit(victim, dl, attacker, attack, dmg, killed)
}

// applyHit applies rolled damage and attack effects to a victim.
func applyHit(victim db.Fighter, dl *db.DamageLists, attacker db.TargetId,
	attack db.Attack, dmg uint32, killed map[db.TargetId]bool) {
	if attack.Effects != nil {
		victim.StageEffects(*attack.Effects)
	}
	if dmg == 0 {
		return
	}

	vid := victim.GetId()
	if applyDamage(victim.MutableHP(), dmg) {
		killed[vid] = true
	}

	// Damage lists attribute character-on-character damage only; fame
	// and kill counters derive from them.
	if vid.Kind == db.KindCharacter && attacker.Kind == db.KindCharacter {
		dl.AddEntry(vid.Id, attacker.Id)
	}
}

// rollDamage draws a uniform damage value in [min, max].
func rollDamage(r *rnd.Rnd, attack db.Attack) uint32 {
	if attack.MaxDamage < attack.MinDamage {
		panic("combat: attack with max damage below min")
	}
	spread := int(attack.MaxDamage-attack.MinDamage) + 1
	return attack.MinDamage + uint32(r.NextInt(spread))
}

// drainMentecon applies the per-block armour drain to every fighter
// with an active mentecon effect.
func drainMentecon(fighters *db.FightersTable, killed map[db.TargetId]bool) {
	for _, fid := range fighters.QueryWithEffects() {
		f := fighters.GetById(fid)
		if !f.Exists() {
			panic("combat: fighter with effects vanished during drain")
		}
		if !f.GetEffects().Mentecon {
			f.Release()
			continue
		}

		hp := f.MutableHP()
		if hp.Armour > 0 {
			hp.Armour--
		}
		if hp.Armour == 0 && hp.Shield == 0 {
			killed[fid] = true
		}
		f.Release()
	}
}

// Regenerate adds the configured milli-HP to every eligible fighter's
// shield, capped at the maximum. Runs after kills, so the dead do not
// regenerate.
func Regenerate(fighters *db.FightersTable) {
	for _, fid := range fighters.QueryForRegen() {
		f := fighters.GetById(fid)
		if !f.Exists() {
			panic("combat: regenerating fighter vanished")
		}

		rd := f.GetRegenData()
		hp := f.MutableHP()

		total := uint64(hp.Shield)*1000 + uint64(hp.ShieldMhp)
		total += uint64(rd.ShieldRegenMhp)
		max := uint64(rd.MaxShield) * 1000
		if total > max {
			total = max
		}

		hp.Shield = uint32(total / 1000)
		hp.ShieldMhp = uint32(total % 1000)
		f.Release()
	}
}
