package secretvault

// ACL is one access-control entry on a stored document.
type ACL struct {
	Grantee string `json:"grantee"`
	Read    bool   `json:"read"`
	Write   bool   `json:"write"`
	Execute bool   `json:"execute"`
}

func (a ACL) bits() int {
	n := 0
	if a.Read {
		n++
	}
	if a.Write {
		n++
	}
	if a.Execute {
		n++
	}
	return n
}

// DedupACL collapses duplicate grantee entries, keeping the entry with more
// permission bits set and preserving first-seen order. The storage network
// can emit the same grantee more than once; the tie-break mirrors what the
// nodes report as effective permissions, so confirm against the network's
// ACL semantics before relying on it for security decisions.
func DedupACL(list []ACL) []ACL {
	index := make(map[string]int, len(list))
	out := make([]ACL, 0, len(list))
	for _, a := range list {
		i, seen := index[a.Grantee]
		if !seen {
			index[a.Grantee] = len(out)
			out = append(out, a)
			continue
		}
		if a.bits() > out[i].bits() {
			out[i] = a
		}
	}
	return out
}

// IsOwnerEntry reports whether the entry at idx is the builder/owner row of
// a deduplicated ACL list. Ownership is inferred positionally: the first
// entry whose grantee differs from the document owner.
func IsOwnerEntry(grantee, owner string, idx int, list []ACL) bool {
	if grantee == owner {
		return false
	}
	for i, a := range list {
		if a.Grantee != owner {
			return i == idx
		}
	}
	return false
}
