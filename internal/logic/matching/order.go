package matching

import "sort"

// Well-known module roles, in default presentation order.
const (
	RoleUltra = "ultra"
	RoleMain  = "main"
	RoleTele  = "tele"
)

var roleRank = map[string]int{
	RoleUltra: 0,
	RoleMain:  1,
	RoleTele:  2,
}

// SortModules returns a copy of modules in the default order: ultra, main,
// tele, then any other roles sorted lexicographically. MatchModule breaks
// ties by input order, so callers should pass modules through this first.
func SortModules(modules []DeviceCameraModule) []DeviceCameraModule {
	out := make([]DeviceCameraModule, len(modules))
	copy(out, modules)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := roleRank[out[i].Role]
		rj, jKnown := roleRank[out[j].Role]
		switch {
		case iKnown && jKnown:
			return ri < rj
		case iKnown:
			return true
		case jKnown:
			return false
		default:
			return out[i].Role < out[j].Role
		}
	})
	return out
}
